package matching

// DefaultRelated pairs each marketplace category with its neighbours for
// partial category credit.
var DefaultRelated = map[string][]string{
	"defi":      {"trading", "payments"},
	"trading":   {"defi", "analytics"},
	"analytics": {"trading", "defi"},
	"payments":  {"defi", "consumer"},
	"consumer":  {"payments", "identity"},
	"identity":  {"consumer", "security"},
	"security":  {"identity", "infra"},
	"infra":     {"security", "ai"},
	"ai":        {"infra", "analytics"},
}
