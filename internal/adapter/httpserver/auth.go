package httpserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/bucketscan/internal/config"
)

// Argon2Params tunes the Argon2id hasher guarding the admin endpoints.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

var defaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // KiB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashPassword derives an Argon2id key from password and encodes it
// together with its parameters as
// argon2id$iterations$memory$parallelism$salt$key, salt and key in raw
// std base64. Self-describing hashes survive parameter bumps: old
// entries keep verifying with the parameters they were created with.
// A zero p falls back to the package defaults.
func HashPassword(password string, p Argon2Params) (string, error) {
	if p == (Argon2Params{}) {
		p = defaultArgon2Params
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	return strings.Join([]string{
		"argon2id",
		strconv.FormatUint(uint64(p.Iterations), 10),
		strconv.FormatUint(uint64(p.Memory), 10),
		strconv.FormatUint(uint64(p.Parallelism), 10),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// VerifyPassword re-derives the key from password with the parameters
// stored in encoded and compares in constant time. Malformed input
// verifies false.
func VerifyPassword(password, encoded string) bool {
	p, salt, want, ok := decodeHash(encoded)
	if !ok {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeHash(encoded string) (p Argon2Params, salt, key []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return Argon2Params{}, nil, nil, false
	}
	iters, errI := parseUint32(parts[1])
	mem, errM := parseUint32(parts[2])
	par, errP := parseUint32(parts[3])
	salt, errS := base64.RawStdEncoding.DecodeString(parts[4])
	key, errK := base64.RawStdEncoding.DecodeString(parts[5])
	if errI != nil || errM != nil || errP != nil || errS != nil || errK != nil {
		return Argon2Params{}, nil, nil, false
	}
	return Argon2Params{Iterations: iters, Memory: mem, Parallelism: clampUint8(par)}, salt, key, true
}

func clampUint8(x uint32) uint8 {
	if x > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(x)
}

// parseUint32 bounds the parse to 32 bits so stored parameters cannot
// overflow the argon2 call.
func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(x), nil
}

// BasicAuthGuard protects the admin routes with HTTP Basic credentials.
// The configured password is stored as an Argon2id hash, never in the clear.
func BasicAuthGuard(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !validCredentials(cfg, user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="bucketscan admin", charset="UTF-8"`)
				writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: apiError{
					Code:    "UNAUTHORIZED",
					Message: "admin credentials required",
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validCredentials(cfg config.Config, user, pass string) bool {
	// Compare the username in constant time too so a mismatch does not
	// reveal which of the two credentials was wrong.
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUsername)) == 1
	passOK := VerifyPassword(pass, cfg.AdminPasswordHash)
	return userOK && passOK
}
