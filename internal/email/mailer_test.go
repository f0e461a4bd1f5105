package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPMessageMentionsCode(t *testing.T) {
	msg := otpMessage("123456", "registration")
	assert.Contains(t, msg.HTML, "123456")
	assert.Contains(t, msg.Text, "123456")
	assert.Contains(t, msg.Subject, "verification")

	reset := otpMessage("654321", "password_reset")
	assert.Contains(t, reset.Subject, "password reset")
}

func TestLogMailerKeepsLatestCode(t *testing.T) {
	m := NewLogMailer()
	ctx := context.Background()
	require.NoError(t, m.SendOTP(ctx, "a@example.com", "111111", "registration"))
	require.NoError(t, m.SendOTP(ctx, "a@example.com", "222222", "registration"))
	require.NoError(t, m.SendOTP(ctx, "b@example.com", "333333", "password_reset"))

	sent, ok := m.LastOTP("a@example.com")
	require.True(t, ok)
	assert.Equal(t, "222222", sent.Code)

	_, ok = m.LastOTP("c@example.com")
	assert.False(t, ok)
}
