package feed

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(apiURL, createURL string) Config {
	return Config{
		APIURL:    apiURL,
		CreateURL: createURL,
		Username:  "kangnaum",
		Token:     "secret-token",
	}
}

func TestFetchSendsProviderForm(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.Equal(t, "okhttp/4.12.0", r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		_, _ = w.Write([]byte("Kredit : 50.150"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), nil)
	raw, err := c.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "Kredit : 50.150", string(raw))

	require.Equal(t, map[string]string{
		"username": "kangnaum",
		"token":    "secret-token",
		"jenis":    "masuk",
	}, gotForm)
}

func TestFetchOptionalIDFilter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "DEP-123", r.PostForm.Get("id"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), nil)
	_, err := c.Fetch(context.Background(), "DEP-123")
	require.NoError(t, err)
}

func TestFetchGzipResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("Kredit : 1.000.000"))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), nil)
	raw, err := c.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "Kredit : 1.000.000", string(raw))
}

func TestFetchNonSuccessStatusIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), nil)
	_, err := c.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchTransportErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nobody listening

	c := NewClient(testConfig(srv.URL, ""), nil)
	_, err := c.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRecentIncomingParsesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"kredit":"50.150","brand":"GOPAY"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), nil)
	txs, err := c.RecentIncoming(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, int64(50150), txs[0].Amount)
}

func TestCreateDepositNormalizesResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "50150", r.PostForm.Get("nominal"))
		require.Equal(t, "user-42-1", r.PostForm.Get("reff_id"))
		_, _ = w.Write([]byte(`{"data":{"id":"DEP-9","nominal":"50.150","qr_string":"00020101021226..."}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig("", srv.URL), nil)
	order, err := c.CreateDeposit(context.Background(), 50150, "", "", "user-42-1")
	require.NoError(t, err)
	require.Equal(t, "DEP-9", order.ID)
	require.Equal(t, int64(50150), order.Nominal)
	require.Empty(t, order.ImageURL)
	require.Equal(t, "00020101021226...", order.QRString)
}

func TestCreateDepositDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"image_url":"https://qr.example/x.png"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig("", srv.URL), nil)
	order, err := c.CreateDeposit(context.Background(), 50150, "", "", "user-42-1")
	require.NoError(t, err)
	require.Equal(t, "user-42-1", order.ID) // falls back to the reference code
	require.Equal(t, int64(50150), order.Nominal)
	require.Equal(t, "https://qr.example/x.png", order.ImageURL)
}

func TestCreateDepositWithoutQRFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"DEP-9","nominal":50150}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig("", srv.URL), nil)
	_, err := c.CreateDeposit(context.Background(), 50150, "", "", "user-42-1")
	require.Error(t, err)
}
