package rulestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/salesdw/etl/internal/domain/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingServer captures writes per table and serves canned GET responses
type recordingServer struct {
	mu      sync.Mutex
	inserts map[string][]json.RawMessage
	patches []patchCall
	gets    map[string]string
}

type patchCall struct {
	table string
	query string
	body  map[string]any
}

func newRecordingServer() *recordingServer {
	return &recordingServer{
		inserts: make(map[string][]json.RawMessage),
		gets:    make(map[string]string),
	}
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := r.URL.Path[1:]

	switch r.Method {
	case http.MethodGet:
		body, ok := s.gets[table]
		if !ok {
			body = "[]"
		}
		fmt.Fprint(w, body)
	case http.MethodPost:
		var rows []json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.inserts[table] = append(s.inserts[table], rows...)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "[]")
	case http.MethodPatch:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.patches = append(s.patches, patchCall{table: table, query: r.URL.RawQuery, body: body})
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*RestStore, *recordingServer) {
	t.Helper()
	backend := newRecordingServer()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())

	store := NewRestStore(client)
	seq := 0
	store.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return store, backend
}

func TestInsertRule_WritesRuleAndLinks(t *testing.T) {
	store, backend := newTestStore(t)

	ruleID, err := store.InsertRule(context.Background(), "itemset-1", rules.MinedRule{
		Antecedents: []string{"A", "B"},
		Consequents: []string{"C"},
		Support:     0.5,
		Confidence:  0.8,
		Lift:        1.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", ruleID)

	require.Len(t, backend.inserts[tableRules], 1)
	var stored rules.AssociationRule
	require.NoError(t, json.Unmarshal(backend.inserts[tableRules][0], &stored))
	assert.Equal(t, "id-1", stored.ID)
	assert.Equal(t, "itemset-1", stored.ItemsetID)
	assert.True(t, stored.Active)
	assert.InDelta(t, 0.8, stored.Confidence, 1e-9)

	assert.Len(t, backend.inserts[tableAntecedents], 2)
	assert.Len(t, backend.inserts[tableConsequents], 1)

	var link rules.RuleProduct
	require.NoError(t, json.Unmarshal(backend.inserts[tableConsequents][0], &link))
	assert.Equal(t, "id-1", link.RuleID)
	assert.Equal(t, "C", link.ProductID)
}

func TestInsertItemset_GeneratesID(t *testing.T) {
	store, backend := newTestStore(t)

	id, err := store.InsertItemset(context.Background(), 0.4, 2)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	require.NoError(t, store.InsertItemsetItems(context.Background(), id, []string{"A", "B"}))

	require.Len(t, backend.inserts[tableItemsets], 1)
	var itemset rules.Itemset
	require.NoError(t, json.Unmarshal(backend.inserts[tableItemsets][0], &itemset))
	assert.Equal(t, id, itemset.ID)
	assert.Equal(t, 2, itemset.Size)

	assert.Len(t, backend.inserts[tableItemsetItems], 2)
}

func TestSoftDeleteRule_PatchesByID(t *testing.T) {
	store, backend := newTestStore(t)

	at := time.Date(2026, 5, 10, 12, 30, 0, 0, time.UTC)
	require.NoError(t, store.SoftDeleteRule(context.Background(), "rule-7", at))

	require.Len(t, backend.patches, 1)
	patch := backend.patches[0]
	assert.Equal(t, tableRules, patch.table)
	assert.Contains(t, patch.query, "rule_id=eq.rule-7")
	assert.Equal(t, false, patch.body["active"])
	assert.Equal(t, "2026-05-10T12:30:00Z", patch.body["deleted_at"])
}

func TestRules_DecodesStoredVersions(t *testing.T) {
	store, backend := newTestStore(t)
	backend.gets[tableRules] = `[
		{"rule_id":"r1","itemset_id":"i1","support":0.5,"confidence":0.8,"lift":1.2,"active":true,"deleted_at":null},
		{"rule_id":"r2","itemset_id":"i1","support":0.4,"confidence":0.7,"lift":1.1,"active":false,"deleted_at":"2026-05-01T00:00:00Z"}
	]`

	stored, err := store.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.True(t, stored[0].Active)
	assert.Nil(t, stored[0].DeletedAt)
	assert.False(t, stored[1].Active)
	require.NotNil(t, stored[1].DeletedAt)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), stored[1].DeletedAt.UTC())
}

func TestDefaultIDsAreUnique(t *testing.T) {
	store := NewRestStore(NewClient(ClientConfig{BaseURL: "http://unused"}, zap.NewNop()))

	a := store.newID()
	b := store.newID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
