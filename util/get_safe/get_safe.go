// Package getsafe reads typed values out of loosely typed maps, such as
// decoded JSON payloads, without panicking on missing or mistyped keys.
package getsafe

// String returns the string stored at key, or the empty string when the key
// is absent or holds a different type.
func String(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// Metadata returns the nested map stored at key, or nil when the key is
// absent or holds a different type.
func Metadata(payload map[string]any, key string) map[string]any {
	m, _ := payload[key].(map[string]any)
	return m
}
