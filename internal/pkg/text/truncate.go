package text

// Truncate 截断超长文本并追加省略号，max <= 0 时不截断。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
