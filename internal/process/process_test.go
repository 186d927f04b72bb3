package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/protocol"
	"github.com/mattjoyce/aoproc/internal/state"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func decode(t *testing.T, raw string) *protocol.Response {
	t.Helper()
	resp, err := protocol.DecodeResponse([]byte(raw))
	require.NoError(t, err, raw)
	return resp
}

func TestHandle_EndToEnd(t *testing.T) {
	p := New(state.NewStore(), nil)

	resp := decode(t, p.Handle(`{"From":"test-sender","Data":"test-value","Tags":{"Action":"Set","Key":"test-key"}}`))
	assert.Equal(t, "Set-Response", resp.Action)
	assert.Contains(t, resp.Data, "Successfully set test-key to test-value")

	resp = decode(t, p.Handle(`{"From":"test-sender","Tags":{"Action":"Get","Key":"test-key"}}`))
	assert.Equal(t, "Get-Response", resp.Action)
	assert.Equal(t, "test-value", resp.Data)
	assert.Equal(t, "test-key", resp.Extra["Key"])

	resp = decode(t, p.Handle(`{"Tags":[{"name":"Action","value":"List"}]}`))
	assert.Equal(t, "List-Response", resp.Action)
	assert.JSONEq(t, `{"test-key":"test-value"}`, resp.Data)
}

func TestHandle_InfoOnEmptyStore(t *testing.T) {
	p := New(state.NewStore(), nil)
	resp := decode(t, p.Handle(`{"Tags":{"Action":"Info"}}`))
	assert.Equal(t, "Info-Response", resp.Action)
	assert.Contains(t, resp.Data, "State entries: 0")
}

func TestHandle_EmptyDataIsStored(t *testing.T) {
	p := New(state.NewStore(), nil)

	resp := decode(t, p.Handle(`{"From":"a","Data":"","Tags":{"Action":"Set","Key":"k"}}`))
	assert.Equal(t, "Set-Response", resp.Action)
	assert.Equal(t, "Successfully set k to ", resp.Data)

	resp = decode(t, p.Handle(`{"From":"a","Tags":{"Action":"Get","Key":"k"}}`))
	assert.Equal(t, "Get-Response", resp.Action)
	assert.Equal(t, "", resp.Data)

	for _, raw := range []string{
		`{"From":"a","Tags":{"Action":"Set","Key":"k"}}`,
		`{"From":"a","Data":null,"Tags":{"Action":"Set","Key":"k"}}`,
	} {
		resp = decode(t, p.Handle(raw))
		assert.Equal(t, protocol.ActionError, resp.Action, raw)
		assert.Equal(t, "Value is required", resp.Data, raw)
	}
}

func TestHandle_EmptySenderIsKept(t *testing.T) {
	p := New(state.NewStore(), nil)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.Handle(`{"From":"","Tags":{"Action":"Info"}}`)), &out))
	assert.Equal(t, "", out["Target"])
	assert.Equal(t, "Info-Response", out["Action"])

	resp := decode(t, p.Handle(`{"Tags":{"Action":"Info"}}`))
	assert.Equal(t, protocol.UnknownSender, resp.Target)
}

func TestHandle_MalformedInput(t *testing.T) {
	p := New(state.NewStore(), nil)

	for _, raw := range []string{`{"From":`, `not json`, ``, `[1,2]`, `{"Tags":{"Action":7}}`} {
		resp := decode(t, p.Handle(raw))
		assert.Equal(t, protocol.ActionError, resp.Action, raw)
		assert.Equal(t, protocol.UnknownSender, resp.Target, raw)
		assert.True(t, strings.HasPrefix(resp.Data, "JSON parse error: "), resp.Data)
	}
}

func TestHandle_EncodeFallbacks(t *testing.T) {
	p := New(state.NewStore(), nil)
	p.encode = func(*protocol.Response) ([]byte, error) { return nil, errors.New("encoder broken") }

	assert.Equal(t, protocol.FallbackParseError, p.Handle(`{`))
	assert.Equal(t, protocol.FallbackSerializationError, p.Handle(`{"Tags":{"Action":"Info"}}`))

	resp := decode(t, protocol.FallbackSerializationError)
	assert.Equal(t, "Response serialization error", resp.Data)
}

func TestGetStateAndClearState(t *testing.T) {
	st := state.NewStore()
	p := New(st, nil)

	assert.Equal(t, "{}", p.GetState())

	require.NoError(t, st.Set("name", "Alice"))
	require.NoError(t, st.Set("city", "New York"))

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(p.GetState()), &got))
	assert.Equal(t, map[string]string{"name": "Alice", "city": "New York"}, got)

	assert.True(t, p.ClearState())
	assert.True(t, p.ClearState())
	assert.Equal(t, "{}", p.GetState())
}

func TestPoisonedStoreStaysAlive(t *testing.T) {
	st := state.NewStore()
	p := New(st, nil)

	func() {
		defer func() { _ = recover() }()
		_ = st.Update(func(map[string]string) { panic("corrupt") })
	}()

	assert.Equal(t, "{}", p.GetState())
	assert.False(t, p.ClearState())

	resp := decode(t, p.Handle(`{"From":"a","Tags":{"Action":"Info"}}`))
	assert.Equal(t, protocol.ActionError, resp.Action)
	assert.Equal(t, "a", resp.Target)
	assert.Contains(t, resp.Data, "State lock error")
}

func TestObservers(t *testing.T) {
	var mu sync.Mutex
	var recs []Record
	collect := ObserverFunc(func(rec Record) {
		mu.Lock()
		defer mu.Unlock()
		recs = append(recs, rec)
	})
	panicky := ObserverFunc(func(Record) { panic("observer bug") })

	p := New(state.NewStore(), nil, WithObserver(panicky), WithObserver(collect), WithObserver(nil))

	out := p.Handle(`{"Id":"m1","From":"alice","Data":"v","Tags":{"Action":"Set","Key":"k"}}`)
	assert.Equal(t, "Set-Response", decode(t, out).Action)
	p.Handle(`garbage`)
	p.ClearState()

	require.Len(t, recs, 3)

	assert.Equal(t, KindMessageHandled, recs[0].Kind)
	assert.Equal(t, "m1", recs[0].MessageID)
	assert.Equal(t, "alice", recs[0].From)
	assert.Equal(t, "Set", recs[0].Action)
	assert.Equal(t, "Set-Response", recs[0].ResponseAction)
	assert.NotEmpty(t, recs[0].ID)
	assert.False(t, recs[0].At.IsZero())

	assert.Equal(t, protocol.ActionError, recs[1].ResponseAction)
	assert.Equal(t, protocol.UnknownSender, recs[1].From)

	assert.Equal(t, KindStateCleared, recs[2].Kind)
	assert.NotEqual(t, recs[0].ID, recs[2].ID)
}

func TestInitLogsOnce(t *testing.T) {
	// log.Setup already ran in TestMain, so Init must not redirect output.
	var buf bytes.Buffer
	Init("DEBUG", "text", &buf)
	assert.Zero(t, buf.Len())
}
