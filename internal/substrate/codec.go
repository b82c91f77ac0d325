package substrate

import (
	"encoding/json"
	"sort"
)

// encodeSet/decodeSet/encodeList/decodeList let the NATS substrate layer
// set and list semantics on top of JetStream KV's plain byte values using
// optimistic-CAS Update calls (see mutateJSONSet and RPush in nats.go).

func encodeSet(set map[string]struct{}) []byte {
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Strings(members)
	data, _ := json.Marshal(members)
	return data
}

func decodeSet(data []byte) map[string]struct{} {
	var members []string
	_ = json.Unmarshal(data, &members)
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

func encodeList(list []string) []byte {
	data, _ := json.Marshal(list)
	return data
}

func decodeList(data []byte) []string {
	var list []string
	_ = json.Unmarshal(data, &list)
	return list
}

func sortStrings(s []string) { sort.Strings(s) }
