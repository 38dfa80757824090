package service

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// AnswersMatch 按值类型比较作答与标准答案：
// 字符串忽略首尾空白和大小写；数组按集合比较与顺序无关；其余深度相等。
// 标准答案为空（如问答题）时不自动判分。
func AnswersMatch(submitted, correct json.RawMessage) bool {
	if isEmptyJSON(correct) || isEmptyJSON(submitted) {
		return false
	}

	var got, want interface{}
	if err := json.Unmarshal(submitted, &got); err != nil {
		return false
	}
	if err := json.Unmarshal(correct, &want); err != nil {
		return false
	}
	return valuesMatch(got, want)
}

func valuesMatch(got, want interface{}) bool {
	switch w := want.(type) {
	case string:
		g, ok := got.(string)
		return ok && normalizeText(g) == normalizeText(w)
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok || len(g) != len(w) {
			return false
		}
		return equalStrings(canonicalSet(g), canonicalSet(w))
	}
	return reflect.DeepEqual(got, want)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// canonicalSet 元素规范化后排序，用于无序比较
func canonicalSet(values []interface{}) []string {
	keys := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			keys = append(keys, "s:"+normalizeText(s))
			continue
		}
		b, _ := json.Marshal(v)
		keys = append(keys, "j:"+string(b))
	}
	sort.Strings(keys)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
