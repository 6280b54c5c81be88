package walletapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateSendsSeedAndID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/start", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var doc map[string]string
		require.NoError(t, json.Unmarshal(body, &doc))
		require.Equal(t, "w1", doc["wallet-id"])
		require.Equal(t, "word1 word2", doc["seed"])

		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	err := New(ts.URL).Create(context.Background(), "w1", "word1 word2")
	require.NoError(t, err)
}

func TestCreateFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid words"}`))
	}))
	defer ts.Close()

	err := New(ts.URL).Create(context.Background(), "w1", "bad seed")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid words")
}

func TestStatusSendsWalletHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wallet/status", r.URL.Path)
		require.Equal(t, "w1", r.Header.Get("X-Wallet-Id"))
		_, _ = w.Write([]byte(`{"statusCode":3,"statusMessage":"Ready"}`))
	}))
	defer ts.Close()

	st, err := New(ts.URL).Status(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, st.StatusCode)
	require.Equal(t, StatusReady, *st.StatusCode)
	require.Equal(t, "Ready", st.StatusMessage)
}

func TestBalanceAndAddresses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "w2", r.Header.Get("X-Wallet-Id"))
		switch r.URL.Path {
		case "/wallet/balance":
			_, _ = w.Write([]byte(`{"available":500,"locked":0}`))
		case "/wallet/addresses":
			_, _ = w.Write([]byte(`{"addresses":["WAddr1","WAddr2"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	b, err := c.Balance(context.Background(), "w2")
	require.NoError(t, err)
	require.EqualValues(t, 500, b.Available)

	addrs, err := c.Addresses(context.Background(), "w2")
	require.NoError(t, err)
	require.Equal(t, []string{"WAddr1", "WAddr2"}, addrs)
}

func TestSendTxAndClose(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "w3", r.Header.Get("X-Wallet-Id"))
		switch r.URL.Path {
		case "/wallet/simple-send-tx":
			body, _ := io.ReadAll(r.Body)
			var doc struct {
				Address string `json:"address"`
				Value   int64  `json:"value"`
			}
			require.NoError(t, json.Unmarshal(body, &doc))
			require.Equal(t, "WDest", doc.Address)
			require.EqualValues(t, 150, doc.Value)
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/wallet/stop":
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	raw, err := c.SendTx(context.Background(), "w3", "WDest", 150)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true}`, string(raw))

	raw, err = c.Close(context.Background(), "w3")
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true}`, string(raw))
}
