package version

// Set at build time with -ldflags "-X github.com/guyfedwards/feedstash/internal/version.BuildVersion=..."
var (
	BuildVersion = "dev"
	BuildRef     = ""
	BuildDate    = ""
)
