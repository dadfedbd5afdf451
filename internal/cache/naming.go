package cache

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"regexp"
	"strings"
)

var (
	reservedChars  = regexp.MustCompile(`[<>:"/\\|?*@\x00-\x1F\x7F]+`)
	repeatedBang   = regexp.MustCompile(`!{2,}`)
	windowsDevices = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])$`)
)

// KeyOptions controls how a repository URL is turned into a directory name.
type KeyOptions struct {
	MaxLength         int
	HashLength        int
	SanitizeEmptyWith string
}

var defaultKeyOptions = KeyOptions{
	MaxLength:         100,
	HashLength:        8,
	SanitizeEmptyWith: "repo",
}

// Key derives a single filesystem-safe path segment from a repository URL.
// Characters that are unsafe in file names are replaced with "!". Credentials
// embedded in the URL never appear in the key; a hash of the full URL is
// appended instead so distinct credentials still map to distinct keys.
// Identical URLs always produce identical keys.
func Key(repoURL string, opts ...KeyOptions) string {
	config := defaultKeyOptions
	if len(opts) > 0 {
		o := opts[0]
		if o.MaxLength > 0 {
			config.MaxLength = o.MaxLength
		}
		if o.HashLength > 0 {
			config.HashLength = o.HashLength
		}
		if o.SanitizeEmptyWith != "" {
			config.SanitizeEmptyWith = o.SanitizeEmptyWith
		}
	}

	redacted := Redact(repoURL)
	key := sanitizeKey(redacted, config)
	if redacted != repoURL {
		key = key + "!" + hashHex(repoURL, config.HashLength)
	}
	if len(key) <= config.MaxLength {
		return key
	}
	return shortenKey(key, config.MaxLength, config)
}

// Redact removes the userinfo from http(s) URLs so tokens do not leak into
// logs or paths. Other URLs, including scp-like ssh addresses, are returned
// unchanged.
func Redact(repoURL string) string {
	u, err := url.Parse(repoURL)
	if err != nil || u.User == nil {
		return repoURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		if _, hasPassword := u.User.Password(); !hasPassword {
			return repoURL
		}
		u.User = url.User(u.User.Username())
		return u.String()
	}
	u.User = nil
	return u.String()
}

func sanitizeKey(s string, config KeyOptions) string {
	s = reservedChars.ReplaceAllString(s, "!")
	s = repeatedBang.ReplaceAllString(s, "!")
	if len(s) > 1 {
		s = strings.Trim(s, "!")
	}
	if s == "." || s == ".." {
		s = "!"
	}
	if windowsDevices.MatchString(s) {
		s += "!"
	}
	if s == "" {
		s = config.SanitizeEmptyWith
	}
	return s
}

func hashHex(s string, hashLen int) string {
	if hashLen <= 0 {
		hashLen = 8
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	hex := fmt.Sprintf("%0*x", hashLen, h.Sum32())
	if len(hex) > hashLen {
		hex = hex[:hashLen]
	}
	return hex
}

func shortenKey(key string, available int, config KeyOptions) string {
	suffix := "-" + hashHex(key, config.HashLength)
	if len(suffix) >= available {
		return suffix[len(suffix)-available:]
	}

	base := strings.TrimRight(key[:available-len(suffix)], "!.-")
	if base == "" {
		base = config.SanitizeEmptyWith
	}
	return base + suffix
}
