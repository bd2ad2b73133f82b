package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"go.uber.org/mock/gomock"
)

func startCallback(t *testing.T) *CallbackServer {
	t.Helper()
	cb := NewCallbackServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := cb.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(cb.Stop)
	return cb
}

func hit(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestCallbackServer_ReceivesCodeAndState(t *testing.T) {
	cb := startCallback(t)
	assert.Contains(t, cb.URL(), "http://127.0.0.1:")

	assert.Equal(t, http.StatusOK, hit(t, cb.URL()+"?code=abc&state=xyz"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := cb.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.NoError(t, result.Err())
}

func TestCallbackServer_OnlyFirstCallbackCounts(t *testing.T) {
	cb := startCallback(t)

	assert.Equal(t, http.StatusOK, hit(t, cb.URL()+"?code=first&state=s"))
	assert.Equal(t, http.StatusBadRequest, hit(t, cb.URL()+"?code=second&state=s"))

	result, err := cb.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", result.Code)
}

func TestCallbackServer_ProviderError(t *testing.T) {
	cb := startCallback(t)

	hit(t, cb.URL()+"?error=access_denied&error_description=user+cancelled")

	result, err := cb.Wait(context.Background())
	require.NoError(t, err)
	require.Error(t, result.Err())
	assert.ErrorIs(t, result.Err(), errs.ErrOAuthCallback)
	assert.Contains(t, result.Err().Error(), "access_denied: user cancelled")
}

func TestCallbackServer_WaitHonoursContext(t *testing.T) {
	cb := startCallback(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbackServer_AddressInUse(t *testing.T) {
	first := startCallback(t)
	addr := first.listener.Addr().String()

	_, err := NewCallbackServer(addr).Start(context.Background())
	assert.Error(t, err)
}

func TestCompleteOAuth2_RedirectThenExchange(t *testing.T) {
	sess, mock, store := newTestSession(t)
	cb := NewCallbackServer("127.0.0.1:0")

	mock.EXPECT().Get(gomock.Any(), pathOAuthURL, gomock.Any()).
		DoAndReturn(respondGet(`{"oauth2":true,"clientId":"cid","state":"st","codeUrl":"https://idp.example/auth"}`))
	mock.EXPECT().
		Post(gomock.Any(), pathExchange, models.ExchangeRequest{Code: "the-code", State: "st", ClientID: "cid"}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _, out any) error {
			return json.Unmarshal([]byte(`{"token":"T1","user":{"sub":"u1"}}`), out)
		})
	mock.EXPECT().SetHeader()

	var opened string
	open := func(url string) error {
		opened = url
		go func() {
			if resp, err := http.Get(cb.URL() + "?code=the-code&state=st"); err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	require.NoError(t, sess.CompleteOAuth2(context.Background(), cb, open))

	assert.Equal(t, "https://idp.example/auth", opened)
	assert.True(t, sess.IsAuthenticated())
	assert.Equal(t, "T1", store.Token())
}

func TestCompleteOAuth2_DisabledNeedsNoListener(t *testing.T) {
	sess, mock, _ := newTestSession(t)

	mock.EXPECT().Get(gomock.Any(), pathOAuthURL, gomock.Any()).
		DoAndReturn(respondGet(`{"clientId":"abc","state":"xyz","codeUrl":"_magic_string_fake_auth_no_redirect_"}`))
	mock.EXPECT().Post(gomock.Any(), pathExchange, gomock.Any(), gomock.Any()).
		DoAndReturn(respond(`{"token":"T1","user":{"sub":"u1"}}`))
	mock.EXPECT().SetHeader()

	open := func(string) error {
		t.Error("browser must not be opened")
		return nil
	}

	require.NoError(t, sess.CompleteOAuth2(context.Background(), NewCallbackServer("127.0.0.1:0"), open))
	assert.True(t, sess.IsAuthenticated())
}
