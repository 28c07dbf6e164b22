package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "deadline exceeded is timeout",
			err:  context.DeadlineExceeded,
			want: KindTimeout,
		},
		{
			name: "wrapped deadline is timeout",
			err:  fmt.Errorf("call failed: %w", context.DeadlineExceeded),
			want: KindTimeout,
		},
		{
			name: "net error is transient",
			err:  &fakeNetError{},
			want: KindTransient,
		},
		{
			name: "net timeout is timeout",
			err:  &fakeNetError{timeout: true},
			want: KindTimeout,
		},
		{
			name: "dns error is transient",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want: KindTransient,
		},
		{
			name: "plain error is permanent",
			err:  errors.New("bad credentials"),
			want: KindPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("discord", "GET /roles", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(GDrive, "op", KindTransient, errors.New("x"))))
	assert.True(t, IsRetryable(NewError(GDrive, "op", KindTimeout, errors.New("x"))))
	assert.False(t, IsRetryable(NewError(GDrive, "op", KindPermanent, errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("unclassified")))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(NewError(TeamSpeak, "op", KindTimeout, context.DeadlineExceeded)))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(NewError(TeamSpeak, "op", KindTransient, errors.New("x"))))
}

func TestErrorMessage(t *testing.T) {
	err := NewError(Discord, "GET /roles", KindTransient, errors.New("connection reset"))
	assert.Contains(t, err.Error(), "discord")
	assert.Contains(t, err.Error(), "GET /roles")
	assert.Contains(t, err.Error(), "transient")
}

func TestClassifyStatusBoundaries(t *testing.T) {
	assert.Equal(t, KindTransient, classifyStatus(500))
	assert.Equal(t, KindTransient, classifyStatus(503))
	assert.Equal(t, KindTransient, classifyStatus(429))
	assert.Equal(t, KindPermanent, classifyStatus(401))
	assert.Equal(t, KindPermanent, classifyStatus(403))
	assert.Equal(t, KindPermanent, classifyStatus(404))
}

var _ net.Error = (*fakeNetError)(nil)
