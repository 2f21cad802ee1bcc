package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyStrings(t *testing.T) {
	configs, err := DecodeConfigs([]byte(`["D100", "", "D102"]`))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "legacy_0", configs[0].ID)
	assert.Equal(t, "地址1", configs[0].Name)
	assert.Equal(t, "D100", configs[0].Address)
	assert.Equal(t, 1, configs[0].StationID)

	assert.Equal(t, "legacy_2", configs[1].ID)
	assert.Equal(t, "地址3", configs[1].Name)
}

func TestDecodeStructuredEntries(t *testing.T) {
	raw := `[{"id":"a","name":"温度","address":"40001","stationId":2,"functionCode":4,"unit":"℃"},
	         {"name":"压力","address":"40003"}]`
	configs, err := DecodeConfigs([]byte(raw))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "温度", configs[0].Name)
	assert.Equal(t, 2, configs[0].StationID)
	assert.Equal(t, 4, configs[0].FunctionCode)
	assert.Equal(t, "℃", configs[0].Unit)

	assert.Equal(t, 1, configs[1].StationID)
	assert.Equal(t, 3, configs[1].FunctionCode)
	assert.Equal(t, "CDAB", configs[1].ByteOrder)
	assert.Equal(t, "int16", configs[1].Type)
}

func TestDecodeStringifiedJSON(t *testing.T) {
	entries, err := Decode([]byte(`"[\"D1\",{\"name\":\"n\",\"address\":\"D2\"}]"`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindLegacy, entries[0].Kind)
	assert.Equal(t, "D1", entries[0].Legacy)
	assert.Equal(t, KindStructured, entries[1].Kind)
	assert.Equal(t, "D2", entries[1].Structured.Address)
}

func TestDecodeEmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "null", `""`, "[]"} {
		entries, err := Decode([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, entries, raw)
	}
}

func TestDecodeMalformedDegradesToEmpty(t *testing.T) {
	for _, raw := range []string{`{"address":"x"}`, `[1,2]`, `"not json"`, `[{"address":`} {
		configs, err := DecodeConfigs([]byte(raw))
		assert.Error(t, err, raw)
		assert.NotNil(t, configs)
		assert.Empty(t, configs)
	}
}

func TestCatalogLookupAndSelectors(t *testing.T) {
	configs, err := DecodeConfigs([]byte(`[
		{"name":"温度","address":"40001","stationId":1},
		{"name":"温度2","address":"40001","stationId":2},
		{"name":"压力","address":"40002","stationId":2}]`))
	require.NoError(t, err)
	cat := NewCatalog(configs)

	require.True(t, cat.MultiStation())
	cfg, ok := cat.Lookup("40001_s2")
	require.True(t, ok)
	assert.Equal(t, "温度2", cfg.Name)

	cfg, ok = cat.Lookup("40002")
	require.True(t, ok)
	assert.Equal(t, "压力", cfg.Name)

	_, ok = cat.Lookup("49999")
	assert.False(t, ok)

	assert.Equal(t, []string{"40001_s1", "40001_s2", "40002_s2"}, Keys(cat.Selectors()))
	assert.Equal(t, []int{1, 2}, cat.Stations())
}

func TestCatalogSingleStationUsesPlainKeys(t *testing.T) {
	cat := NewCatalog(Normalize([]Entry{{Kind: KindLegacy, Legacy: "D1"}, {Kind: KindLegacy, Legacy: "D1"}}))
	assert.False(t, cat.MultiStation())
	assert.Equal(t, []string{"D1"}, Keys(cat.Selectors()))
}
