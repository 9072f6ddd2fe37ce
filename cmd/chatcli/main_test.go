package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunReportsBadInput(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want string
	}{
		{name: "missing token", opts: options{match: uuid.NewString()}, want: "CHAT_TOKEN"},
		{name: "bad match id", opts: options{token: "t", match: "nope"}, want: "-match"},
		{name: "unreadable token", opts: options{token: "garbage", match: uuid.NewString()}, want: "unreadable token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.opts, zap.NewNop())
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}
