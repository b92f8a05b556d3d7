package primary

// Hash domains
const (
	HashMessage = "message"
	HashDedupe  = "dedupe"
	HashResult  = "result"
)

// Hasher derives content addresses. Parts are length-prefixed so that
// distinct part lists never collide.
type Hasher interface {
	Sum(domain string, parts ...[]byte) string
}
