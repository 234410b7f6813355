package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// Metadata method names without API prefix.
const (
	MethodConfig       = "get_config"
	MethodDynamicProps = "get_dynamic_global_properties"
)

// blockTimeLayout is how graphene nodes format timestamps (UTC, no zone).
const blockTimeLayout = "2006-01-02T15:04:05"

// MetadataMethod names a metadata call for the given server type. Jussi gateways route the bare
// legacy names, raw nodes expect the condenser_api prefix.
func MetadataMethod(serverType entity.ServerType, method string) string {
	if serverType.IsGateway() {
		return method
	}
	return "condenser_api." + method
}

// ChainConfig is what get_config reveals.
type ChainConfig struct {
	Version string
	Network entity.Network
}

// ParseConfig extracts the blockchain version and network from a get_config result.
func ParseConfig(raw json.RawMessage) (ChainConfig, error) {
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return ChainConfig{}, fmt.Errorf("%w: get_config result is not an object", apperrors.ErrMalformedResponse)
	}

	for _, candidate := range []struct {
		key     string
		network entity.Network
	}{
		{"HIVE_BLOCKCHAIN_VERSION", entity.NetworkHive},
		{"STEEM_BLOCKCHAIN_VERSION", entity.NetworkSteem},
		{"STEEMIT_BLOCKCHAIN_VERSION", entity.NetworkSteem},
	} {
		if v := res.Get(candidate.key); v.Exists() && v.String() != "" {
			return ChainConfig{Version: v.String(), Network: candidate.network}, nil
		}
	}

	// Forks keep the graphene layout under their own key prefix.
	var cfg ChainConfig
	res.ForEach(func(key, value gjson.Result) bool {
		if strings.HasSuffix(key.String(), "_BLOCKCHAIN_VERSION") && value.String() != "" {
			cfg = ChainConfig{Version: value.String(), Network: networkFromPrefix(key.String())}
			return false
		}
		return true
	})
	if cfg.Version == "" {
		return ChainConfig{}, fmt.Errorf("%w: get_config has no blockchain version", apperrors.ErrMalformedResponse)
	}
	return cfg, nil
}

func networkFromPrefix(key string) entity.Network {
	switch {
	case strings.HasPrefix(key, "HIVE_"):
		return entity.NetworkHive
	case strings.HasPrefix(key, "STEEM"):
		return entity.NetworkSteem
	case strings.HasPrefix(key, "GOLOS"):
		return entity.NetworkGolos
	case strings.HasPrefix(key, "WLS"), strings.HasPrefix(key, "WHALESHARES"):
		return entity.NetworkWhaleshares
	default:
		return entity.NetworkUnknown
	}
}

// ChainState is what get_dynamic_global_properties reveals.
type ChainState struct {
	HeadBlock         int64
	IrreversibleBlock int64
	BlockTime         time.Time
	Network           entity.Network
}

// ParseDynamicProps extracts head block, block time and the coin-derived network.
func ParseDynamicProps(raw json.RawMessage) (ChainState, error) {
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return ChainState{}, fmt.Errorf("%w: dynamic global properties is not an object", apperrors.ErrMalformedResponse)
	}

	head := res.Get("head_block_number")
	if head.Type != gjson.Number {
		return ChainState{}, fmt.Errorf("%w: head_block_number missing", apperrors.ErrMalformedResponse)
	}

	state := ChainState{
		HeadBlock:         head.Int(),
		IrreversibleBlock: res.Get("last_irreversible_block_num").Int(),
		Network:           entity.NetworkUnknown,
	}

	if ts := res.Get("time").String(); ts != "" {
		t, err := time.ParseInLocation(blockTimeLayout, ts, time.UTC)
		if err != nil {
			return ChainState{}, fmt.Errorf("%w: bad block time %q: %v", apperrors.ErrMalformedResponse, ts, err)
		}
		state.BlockTime = t
	}

	for _, key := range []string{"virtual_supply", "current_supply", "current_sbd_supply", "current_hbd_supply"} {
		if n := NetworkFromCoin(coinSymbol(res.Get(key))); n.Known() {
			state.Network = n
			break
		}
	}

	return state, nil
}

// coinSymbol extracts the symbol of a legacy asset string such as "1.000 HIVE".
// NAI objects are shared between Hive and Steem and say nothing about the network.
func coinSymbol(asset gjson.Result) string {
	if asset.Type != gjson.String {
		return ""
	}
	fields := strings.Fields(asset.String())
	if len(fields) != 2 {
		return ""
	}
	return fields[1]
}

// NetworkFromCoin maps a coin symbol to its network.
func NetworkFromCoin(symbol string) entity.Network {
	switch strings.ToUpper(symbol) {
	case "HIVE", "HBD":
		return entity.NetworkHive
	case "STEEM", "SBD":
		return entity.NetworkSteem
	case "GOLOS", "GBG":
		return entity.NetworkGolos
	case "WLS":
		return entity.NetworkWhaleshares
	default:
		return entity.NetworkUnknown
	}
}
