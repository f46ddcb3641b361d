package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectionTwoItems = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<items totalitems="2" termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item objecttype="thing" objectid="13" subtype="boardgame" collid="1">
		<name sortindex="1">CATAN</name>
		<yearpublished>1995</yearpublished>
	</item>
	<item objecttype="thing" objectid="822" subtype="boardgame" collid="2">
		<name sortindex="1">Carcassonne</name>
	</item>
</items>`

const collectionOneItem = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<items totalitems="1">
	<item objecttype="thing" objectid="174430" subtype="boardgame" collid="3">
		<name sortindex="1">Gloomhaven</name>
	</item>
</items>`

const collectionUnknownUser = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<errors><error><message>Invalid username specified</message></error></errors>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, UserAgent: "matatena-test/1.0", APIKey: "k3y"})
}

func TestFetchOwnedItemsSendsExpectedRequest(t *testing.T) {
	var gotPath, gotUA, gotAuth string
	var gotQuery map[string][]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, collectionTwoItems)
	})

	items, err := client.FetchOwnedItems(context.Background(), "zapata131")
	require.NoError(t, err)

	assert.Equal(t, "/collection", gotPath)
	assert.Equal(t, []string{"zapata131"}, gotQuery["username"])
	assert.Equal(t, []string{"1"}, gotQuery["own"])
	assert.Equal(t, []string{"1"}, gotQuery["stats"])
	assert.Equal(t, []string{"boardgameexpansion"}, gotQuery["excludesubtype"])
	assert.Equal(t, "matatena-test/1.0", gotUA)
	assert.Equal(t, "Bearer k3y", gotAuth)

	assert.Equal(t, []OwnedItem{{ID: "13", Name: "CATAN"}, {ID: "822", Name: "Carcassonne"}}, items)
}

func TestFetchOwnedItemsCoercesSingleItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, collectionOneItem)
	})

	items, err := client.FetchOwnedItems(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []OwnedItem{{ID: "174430", Name: "Gloomhaven"}}, items)
}

func TestFetchOwnedItemsEmptyCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<items totalitems="0" termsofuse="x"></items>`)
	})

	items, err := client.FetchOwnedItems(context.Background(), "nobody-owns")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchOwnedItemsRetryLater(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `<message>Your request for this collection has been accepted and will be processed.</message>`)
	})

	_, err := client.FetchOwnedItems(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrRetryLater)
}

func TestFetchOwnedItemsUnknownUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, collectionUnknownUser)
	})

	_, err := client.FetchOwnedItems(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoSuchUser)
}

func TestFetchOwnedItemsBlankUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a blank username")
	})

	_, err := client.FetchOwnedItems(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoSuchUser)
}

func TestFetchOwnedItemsUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.FetchOwnedItems(context.Background(), "someone")
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, upErr.StatusCode)
	assert.Equal(t, "collection", upErr.Op)
	assert.NotErrorIs(t, err, ErrNoSuchUser)
}

func TestFetchOwnedItemsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := New(Config{BaseURL: srv.URL, UserAgent: "matatena-test/1.0"})

	_, err := client.FetchOwnedItems(context.Background(), "someone")
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Zero(t, upErr.StatusCode)
	assert.Error(t, upErr.Unwrap())
}

func thingXML(ids []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><items termsofuse="x">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<item type="boardgame" id="%s"><name type="primary" sortindex="1" value="Game %s"/><minplayers value="2"/></item>`, id, id)
	}
	b.WriteString(`</items>`)
	return b.String()
}

func TestFetchItemDetailsBatchesAndToleratesFailure(t *testing.T) {
	var mu sync.Mutex
	var batches []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/thing", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("stats"))

		mu.Lock()
		batches = append(batches, r.URL.Query().Get("id"))
		n := len(batches)
		mu.Unlock()

		if n == 2 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, thingXML(strings.Split(r.URL.Query().Get("id"), ",")))
	})

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}

	items := client.FetchItemDetails(context.Background(), ids)

	require.Len(t, batches, 2)
	assert.Len(t, strings.Split(batches[0], ","), 20)
	assert.Len(t, strings.Split(batches[1], ","), 5)

	require.Len(t, items, 20)
	assert.Equal(t, "1", items[0].ID())
	assert.Equal(t, "20", items[19].ID())
}

func TestFetchItemDetailsEmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty ids")
	})

	assert.Empty(t, client.FetchItemDetails(context.Background(), nil))
}

func TestFetchItemDetailsSingleItemResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, thingXML([]string{"42"}))
	})

	items := client.FetchItemDetails(context.Background(), []string{"42"})
	require.Len(t, items, 1)
	assert.Equal(t, "42", items[0].ID())
	assert.Equal(t, "Game 42", Attr(First(items[0]["name"]), "value"))
}
