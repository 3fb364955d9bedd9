package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCredentials(t *testing.T) {
	tests := []struct {
		name        string
		creds       Credentials
		wantAuth    string
		wantSession string
	}{
		{"access token", StaticCredentials{Token: "my-access-token"}, "Bearer my-access-token", ""},
		{"session secret", StaticCredentials{Secret: "my-secret-token"}, "", "my-secret-token"},
		{"token wins over secret", StaticCredentials{Token: "my-access-token", Secret: "my-secret-token"}, "Bearer my-access-token", ""},
		{"anonymous", StaticCredentials{}, "", ""},
		{"nil provider", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{respond: respondWith(200, "Hello World")}
			fn := WithCredentials(tt.creds)(ft.Do)

			resp, err := fn(context.Background(), NewRequest("GET", "https://api.expo.dev/v2/get-me"))
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			sent := ft.last().Header
			auth, hasAuth := sent[HeaderAuthorization]
			session, hasSession := sent[HeaderSession]
			assert.Equal(t, tt.wantAuth != "", hasAuth)
			assert.Equal(t, tt.wantAuth, auth)
			assert.Equal(t, tt.wantSession != "", hasSession)
			assert.Equal(t, tt.wantSession, session)
		})
	}
}

func TestWithCredentialsTokenDropsCallerSessionHeader(t *testing.T) {
	ft := &fakeTransport{respond: respondWith(200, "")}
	fn := WithCredentials(StaticCredentials{Token: "tok", Secret: "sec"})(ft.Do)

	req := NewRequest("GET", "https://h/p")
	req.Header["Expo-Session"] = "stale"
	_, err := fn(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{HeaderAuthorization: "Bearer tok"}, ft.last().Header)
	assert.Equal(t, map[string]string{"Expo-Session": "stale"}, req.Header, "caller headers must not be modified")
}

func TestWithCredentialsRejectsListHeaders(t *testing.T) {
	ft := &fakeTransport{respond: respondWith(200, "")}
	fn := WithCredentials(StaticCredentials{Token: "tok"})(ft.Do)

	req := NewRequest("GET", "https://h/p")
	req.HeaderPairs = []HeaderPair{{"accept", "application/json"}}
	_, err := fn(context.Background(), req)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 0, ft.calls(), "no request should be sent")
}
