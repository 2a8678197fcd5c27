package slim

// Result holds the reply tokens that follow the echoed command of a Query.
//
// Some commands answer with one bare value, others with a block of key:value fields;
// Scalar and Fields give both views of the same tokens.
type Result struct {
	tokens []string
}

// NewResult wraps already stripped reply tokens.
func NewResult(tokens ...string) Result {
	return Result{tokens: tokens}
}

// Tokens returns the raw reply tokens.
func (r Result) Tokens() []string {
	return r.tokens
}

// Len returns the number of reply tokens.
func (r Result) Len() int {
	return len(r.tokens)
}

// Scalar returns the sole reply token. ok is false unless exactly one token remains.
func (r Result) Scalar() (value string, ok bool) {
	if len(r.tokens) != 1 {
		return "", false
	}

	return r.tokens[0], true
}

// IsScalar reports whether the reply is a single bare value.
func (r Result) IsScalar() bool {
	return len(r.tokens) == 1
}

// Fields maps every reply token as key:value, split on the first colon.
// Later tokens overwrite earlier ones with the same key.
func (r Result) Fields() map[string]string {
	fields := make(map[string]string, len(r.tokens))
	for _, token := range r.tokens {
		key, value := SplitField(token)
		fields[key] = value
	}

	return fields
}
