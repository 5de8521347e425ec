package routeros

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginPlainSuccess(t *testing.T) {
	tc := newTestConn()

	loginErr := make(chan error, 1)
	go func() { loginErr <- login(tc.conn, "admin", "hunter2") }()

	require.Eventually(t, func() bool { return len(tc.sentSentences()) == 1 }, time.Second, time.Millisecond)
	sent := tc.sentSentences()[0]
	assert.Equal(t, []string{"/login", "=name=admin", "=password=hunter2"}, sent)

	tc.deliver([]string{"!done"})

	select {
	case err := <-loginErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("login did not return")
	}
}

func TestLoginMD5ChallengeResponse(t *testing.T) {
	tc := newTestConn()

	loginErr := make(chan error, 1)
	go func() { loginErr <- login(tc.conn, "admin", "hunter2") }()

	require.Eventually(t, func() bool { return len(tc.sentSentences()) == 1 }, time.Second, time.Millisecond)

	tc.deliver([]string{"!done", "=ret=5a8203a9328da468b8ee0d55cb8ade6d"})

	require.Eventually(t, func() bool { return len(tc.sentSentences()) == 2 }, time.Second, time.Millisecond)
	second := tc.sentSentences()[1]
	require.Len(t, second, 3)
	assert.Equal(t, "/login", second[0])
	assert.Equal(t, "=name=admin", second[1])
	assert.Contains(t, second[2], "=response=00")

	tc.deliver([]string{"!done"})

	select {
	case err := <-loginErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("login did not return")
	}
}

func TestLoginRejected(t *testing.T) {
	tc := newTestConn()

	loginErr := make(chan error, 1)
	go func() { loginErr <- login(tc.conn, "admin", "wrong") }()

	require.Eventually(t, func() bool { return len(tc.sentSentences()) == 1 }, time.Second, time.Millisecond)
	tc.deliver([]string{"!trap", "=message=invalid user name or password"})

	select {
	case err := <-loginErr:
		var trap *TrapError
		require.ErrorAs(t, err, &trap)
		assert.Equal(t, "invalid user name or password", trap.Message)
	case <-time.After(time.Second):
		t.Fatal("login did not return")
	}
}

func TestMD5ChallengeResponseFormat(t *testing.T) {
	resp, err := md5ChallengeResponse("hunter2", "0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	assert.Len(t, resp, 34)
	assert.Equal(t, "00", resp[:2])
}
