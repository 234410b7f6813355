package capability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-scanner/internal/pkg/apperrors"
)

var testBindings = Bindings{Account: "someguy123", Post: "some-post", PubPrefix: "STM"}

func TestDefaultCatalogue(t *testing.T) {
	m := Default(testBindings)

	assert.Equal(t, 3, m.TotalStages())
	assert.Equal(t, 8, m.TotalProbes())

	names := make([]string, 0, 3)
	for _, s := range m.Stages() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"accounts", "content", "history"}, names)
	assert.Equal(t, "condenser_api.get_accounts", m.Methods()[0])
	assert.Equal(t, "account_history_api.get_account_history", m.Methods()[7])
}

func TestMatrixStagesIsACopy(t *testing.T) {
	m := Default(testBindings)
	stages := m.Stages()
	stages[0].Name = "mutated"
	stages[0].Probes[0].Method = "mutated"

	assert.Equal(t, "accounts", m.Stages()[0].Name)
	assert.Equal(t, "condenser_api.get_accounts", m.Stages()[0].Probes[0].Method)
}

func TestMatrixParams(t *testing.T) {
	m := Default(Bindings{Account: `we"ird`, Post: "p"})

	def, _, ok := m.Lookup("condenser_api.get_content")
	require.True(t, ok)

	raw, err := m.Params(def)
	require.NoError(t, err)

	var params []string
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, []string{`we"ird`, "p"}, params)
}

func TestMatrixParamsHistory(t *testing.T) {
	m := Default(testBindings)

	tests := []struct {
		method string
		want   string
	}{
		{"condenser_api.get_account_history", `["` + testBindings.Account + `", -100, 100]`},
		{"account_history_api.get_account_history", `{"account":"` + testBindings.Account + `","start":-1,"limit":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			def, _, ok := m.Lookup(tt.method)
			require.True(t, ok)
			raw, err := m.Params(def)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestMatrixParamsInvalidTemplate(t *testing.T) {
	m := Default(testBindings)
	_, err := m.Params(ProbeDefinition{Method: "x", Params: "[1,"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMatrixParamsEmptyTemplate(t *testing.T) {
	m := Default(testBindings)
	raw, err := m.Params(ProbeDefinition{Method: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestMatrixFilter(t *testing.T) {
	m := Default(testBindings)

	t.Run("skip", func(t *testing.T) {
		f := m.Filter(FilterOptions{Skip: []string{"condenser_api.get_accounts", "condenser_api.get_witness_by_account"}})
		assert.Equal(t, 2, f.TotalStages())
		assert.Equal(t, 6, f.TotalProbes())
		_, _, ok := f.Lookup("condenser_api.get_accounts")
		assert.False(t, ok)
	})

	t.Run("only", func(t *testing.T) {
		f := m.Filter(FilterOptions{Only: []string{"bridge.get_trending_topics"}})
		assert.Equal(t, 1, f.TotalStages())
		_, stage, ok := f.Lookup("bridge.get_trending_topics")
		require.True(t, ok)
		assert.Equal(t, "content", stage)
	})

	t.Run("extra", func(t *testing.T) {
		f := m.Filter(FilterOptions{Extra: []string{"database_api.get_version", " ", "condenser_api.get_blog"}})
		assert.Equal(t, 4, f.TotalStages())
		assert.Equal(t, 9, f.TotalProbes())
		def, stage, ok := f.Lookup("database_api.get_version")
		require.True(t, ok)
		assert.Equal(t, ExtraStage, stage)
		assert.Equal(t, "[]", def.Params)
	})

	t.Run("original untouched", func(t *testing.T) {
		assert.Equal(t, 8, m.TotalProbes())
	})
}

func TestMatrixValidateCatalogue(t *testing.T) {
	m := Default(testBindings)

	blogEntry := `{"blog":"someguy123","entry_id":1,"comment":{"body":"hi"}}`
	blog := "[" + repeat(blogEntry, 10) + "]"
	follower := `{"follower":"a","following":"someguy123","what":["blog"]}`
	followers := "[" + repeat(follower, 10) + "]"
	histEntry := `[1,{"op":["vote",{}]}]`
	history := "[" + repeat(histEntry, 5) + "]"

	tests := []struct {
		method string
		result string
		ok     bool
	}{
		{"condenser_api.get_accounts", `[{"name":"someguy123"}]`, true},
		{"condenser_api.get_accounts", `[{"name":"SomeGuy123 "}]`, true},
		{"condenser_api.get_accounts", `[{"name":"other"}]`, false},
		{"condenser_api.get_accounts", `[]`, false},
		{"condenser_api.get_witness_by_account", `{"owner":"someguy123","signing_key":"STM7abc"}`, true},
		{"condenser_api.get_witness_by_account", `{"owner":"someguy123","signing_key":"TST7abc"}`, false},
		{"condenser_api.get_witness_by_account", `null`, false},
		{"condenser_api.get_blog", blog, true},
		{"condenser_api.get_blog", "[" + blogEntry + "]", false},
		{"condenser_api.get_blog", "[" + repeat(`{"blog":"x","entry_id":1,"comment":{}}`, 10) + "]", false},
		{"condenser_api.get_content", `{"body":"b","author":"someguy123","category":"c","title":"t"}`, true},
		{"condenser_api.get_content", `{"body":"b","author":"someguy123"}`, false},
		{"condenser_api.get_followers", followers, true},
		{"condenser_api.get_followers", "[" + repeat(`{"follower":"a"}`, 10) + "]", false},
		{"bridge.get_trending_topics", `[["hive-1","One"],["hive-2","Two"]]`, true},
		{"bridge.get_trending_topics", `[["steem-1","One"]]`, false},
		{"bridge.get_trending_topics", `[["hive-1"]]`, false},
		{"condenser_api.get_account_history", history, true},
		{"condenser_api.get_account_history", `[[1,{}]]`, false},
		{"condenser_api.get_account_history", "[" + repeat(`["x",{"op":1}]`, 5) + "]", false},
		{"account_history_api.get_account_history", `{"history":` + history + `}`, true},
		{"account_history_api.get_account_history", `{"history":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			def, _, ok := m.Lookup(tt.method)
			require.True(t, ok)

			err := m.Validate(def, json.RawMessage(tt.result))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestPrefixFollowsBindings(t *testing.T) {
	def := ProbeDefinition{Method: "k", Validators: []Validator{HasPrefix("key", PlaceholderPrefix)}}
	result := json.RawMessage(`{"key":"TST5xyz"}`)

	assert.Error(t, Default(testBindings).Validate(def, result))
	assert.NoError(t, Default(Bindings{PubPrefix: "TST"}).Validate(def, result))
}

func repeat(item string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}
