package blendsql

// DefaultAnsSep and DefaultNanAns carry the original implementation's
// answer-separator and no-match constants. DefaultNanAns has the same
// value as the `-` a JOIN ingredient's mapping uses for a left value with
// no aligned right value; the builtin LLMJoin prompt separates left and
// right values with `->` and newlines, so no prompt in this module uses
// DefaultAnsSep.
const (
	DefaultAnsSep = ";"
	DefaultNanAns = "-"
)

// SessionIDLength is the length of the random session identifier Blend
// generates per top-level call, used as a prefix for every temp table the
// call creates so concurrent Blend calls against the same backend never
// collide.
const SessionIDLength = 4

// MaxRecursionDepth bounds how many nested subqueries Blend will resolve
// before giving up, guarding against a pathological or adversarial query
// driving unbounded recursion. Config.Execution.MaxRecursionDepth
// overrides this per call.
const MaxRecursionDepth = 25
