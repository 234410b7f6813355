package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// SortKey names a column the batch table can be ordered by.
type SortKey string

// Sort keys.
const (
	SortScore      SortKey = "score"
	SortServer     SortKey = "server"
	SortStatus     SortKey = "status"
	SortHeadBlock  SortKey = "head_block"
	SortBlockTime  SortKey = "block_time"
	SortVersion    SortKey = "version"
	SortNetwork    SortKey = "network"
	SortResTime    SortKey = "res_time"
	SortAvgRetries SortKey = "avg_retries"
	SortAPITests   SortKey = "api_tests"
)

// Ordering is a parsed --sort value.
type Ordering struct {
	Key SortKey
	// PreferStatus floats results with this status to the top when Key is SortStatus.
	PreferStatus entity.Status
	// PreferNetwork floats results on this network to the top when Key is SortNetwork.
	PreferNetwork entity.Network
}

var sortAliases = map[string]Ordering{
	"":        {Key: SortScore},
	"default": {Key: SortScore},
	"score":   {Key: SortScore},
	"health":  {Key: SortScore},

	"server": {Key: SortServer},
	"node":   {Key: SortServer},
	"url":    {Key: SortServer},
	"host":   {Key: SortServer},

	"status":    {Key: SortStatus},
	"online":    {Key: SortStatus, PreferStatus: entity.StatusPerfect},
	"perfect":   {Key: SortStatus, PreferStatus: entity.StatusPerfect},
	"good":      {Key: SortStatus, PreferStatus: entity.StatusGood},
	"unstable":  {Key: SortStatus, PreferStatus: entity.StatusUnstable},
	"bad":       {Key: SortStatus, PreferStatus: entity.StatusBad},
	"outofsync": {Key: SortStatus, PreferStatus: entity.StatusUnstable},
	"error":     {Key: SortStatus, PreferStatus: entity.StatusError},
	"dead":      {Key: SortStatus, PreferStatus: entity.StatusDead},

	"head_block": {Key: SortHeadBlock},
	"head":       {Key: SortHeadBlock},
	"block":      {Key: SortHeadBlock},
	"block_num":  {Key: SortHeadBlock},

	"block_time": {Key: SortBlockTime},
	"time":       {Key: SortBlockTime},
	"lag":        {Key: SortBlockTime},
	"behind":     {Key: SortBlockTime},

	"version": {Key: SortVersion},
	"ver":     {Key: SortVersion},

	"network":     {Key: SortNetwork},
	"net":         {Key: SortNetwork},
	"chain":       {Key: SortNetwork},
	"hive":        {Key: SortNetwork, PreferNetwork: entity.NetworkHive},
	"steem":       {Key: SortNetwork, PreferNetwork: entity.NetworkSteem},
	"golos":       {Key: SortNetwork, PreferNetwork: entity.NetworkGolos},
	"whaleshares": {Key: SortNetwork, PreferNetwork: entity.NetworkWhaleshares},
	"wls":         {Key: SortNetwork, PreferNetwork: entity.NetworkWhaleshares},

	"res_time":      {Key: SortResTime},
	"response_time": {Key: SortResTime},
	"latency":       {Key: SortResTime},
	"speed":         {Key: SortResTime},

	"avg_retries": {Key: SortAvgRetries},
	"retries":     {Key: SortAvgRetries},
	"tries":       {Key: SortAvgRetries},

	"api_tests": {Key: SortAPITests},
	"apis":      {Key: SortAPITests},
	"plugins":   {Key: SortAPITests},
	"tests":     {Key: SortAPITests},
}

// ParseOrdering resolves a --sort value or one of its aliases.
func ParseOrdering(name string) (Ordering, error) {
	o, ok := sortAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Ordering{}, fmt.Errorf("%w: unknown sort option %q", apperrors.ErrInvalidInput, name)
	}
	return o, nil
}

// SortNames lists every accepted --sort value.
func SortNames() []string {
	names := make([]string, 0, len(sortAliases))
	for name := range sortAliases {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// descending reports keys where a larger value is healthier and therefore listed first.
func (k SortKey) descending() bool {
	switch k {
	case SortScore, SortStatus, SortHeadBlock, SortBlockTime, SortVersion, SortAPITests:
		return true
	}
	return false
}

// Sort returns a copy of results ordered by o. Ties keep input order; reverse flips the key's natural direction.
func Sort(results []entity.ClassifiedResult, o Ordering, reverse bool) []entity.ClassifiedResult {
	out := make([]entity.ClassifiedResult, len(results))
	copy(out, results)

	less := o.less
	desc := o.Key.descending() != reverse

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func (o Ordering) less(a, b entity.ClassifiedResult) bool {
	switch o.Key {
	case SortServer:
		return a.Endpoint.String() < b.Endpoint.String()
	case SortStatus:
		ra, rb := a.Status.Rank(), b.Status.Rank()
		if o.PreferStatus != "" {
			ra, rb = preferred(a.Status == o.PreferStatus, ra), preferred(b.Status == o.PreferStatus, rb)
		}
		return ra < rb
	case SortHeadBlock:
		return a.HeadBlock < b.HeadBlock
	case SortBlockTime:
		return a.BlockTime.Before(b.BlockTime)
	case SortVersion:
		return compareVersions(a.Version, b.Version) < 0
	case SortNetwork:
		if o.PreferNetwork != "" {
			pa, pb := a.Network == o.PreferNetwork, b.Network == o.PreferNetwork
			if pa != pb {
				return pa
			}
		}
		return a.Network < b.Network
	case SortResTime:
		return responseTimeKey(a) < responseTimeKey(b)
	case SortAvgRetries:
		return retriesKey(a) < retriesKey(b)
	case SortAPITests:
		return a.PluginsPassed() < b.PluginsPassed()
	default:
		return a.Score < b.Score
	}
}

func preferred(match bool, rank int) int {
	if match {
		return rank + 100
	}
	return rank
}

// responseTimeKey places endpoints without a measured response time last.
func responseTimeKey(r entity.ClassifiedResult) int64 {
	avg := r.AvgResponseTime()
	if !r.Connected || avg == 0 {
		return 1<<63 - 1
	}
	return int64(avg)
}

func retriesKey(r entity.ClassifiedResult) float64 {
	if !r.Connected {
		return 1e9
	}
	return r.AvgRetries()
}

// compareVersions compares dotted numeric versions. Unparsable versions sort below parsable ones.
func compareVersions(a, b string) int {
	pa, okA := parseVersion(a)
	pb, okB := parseVersion(b)
	switch {
	case !okA && !okB:
		return strings.Compare(a, b)
	case !okA:
		return -1
	case !okB:
		return 1
	}

	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func parseVersion(v string) ([]int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" || v == entity.VersionError {
		return nil, false
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
