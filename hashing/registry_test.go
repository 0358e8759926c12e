package hashing_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/hasbyte1/go-passcompat/hashing"
)

// newTestRegistry returns a Registry with every scheme registered using fast
// (test-safe) options.  It accepts testing.TB so it can be called from both
// *testing.T (unit tests) and *testing.B (benchmarks).
func newTestRegistry(tb testing.TB) *hashing.Registry {
	tb.Helper()
	var hashers []hashing.Hasher
	for _, ident := range []byte{'a', 'b', 'y'} {
		h, err := hashing.NewBcryptHasher(hashing.BcryptOptions{Cost: testBcryptCost, Ident: ident})
		if err != nil {
			tb.Fatal(err)
		}
		hashers = append(hashers, h)
	}
	for _, s := range []hashing.Scheme{
		hashing.SchemePBKDF2SHA1, hashing.SchemePBKDF2SHA224, hashing.SchemePBKDF2SHA256,
		hashing.SchemePBKDF2SHA384, hashing.SchemePBKDF2SHA512,
	} {
		opts := hashing.DefaultPBKDF2Options(s)
		opts.Rounds = 12
		h, err := hashing.NewPBKDF2Hasher(s, opts)
		if err != nil {
			tb.Fatal(err)
		}
		hashers = append(hashers, h)
	}
	drupalOpts := hashing.DefaultDrupal7Options()
	drupalOpts.LogIterations = 7
	drupalH, err := hashing.NewDrupal7Hasher(drupalOpts)
	if err != nil {
		tb.Fatal(err)
	}
	scryptH, err := hashing.NewScryptHasher(fastScryptOpts())
	if err != nil {
		tb.Fatal(err)
	}
	for _, s := range []hashing.Scheme{hashing.SchemeMD5Crypt, hashing.SchemeSHA256Crypt, hashing.SchemeSHA512Crypt} {
		hashers = append(hashers, newTestUnixCryptHasher(tb, s))
	}
	a2iH, _ := hashing.NewArgon2iHasher(fastArgon2Opts())
	a2idH, _ := hashing.NewArgon2idHasher(fastArgon2Opts())
	hashers = append(hashers, drupalH, newTestPhpassHasher(tb), scryptH, a2iH, a2idH)

	r, err := hashing.NewRegistry(hashing.SchemeArgon2id, hashers...)
	if err != nil {
		tb.Fatalf("NewRegistry: %v", err)
	}
	return r
}

var allSchemes = []hashing.Scheme{
	hashing.SchemeArgon2i,
	hashing.SchemeArgon2id,
	hashing.SchemeBcrypt2a,
	hashing.SchemeBcrypt2b,
	hashing.SchemeBcrypt2y,
	hashing.SchemeDrupal7,
	hashing.SchemeMD5Crypt,
	hashing.SchemePBKDF2SHA1,
	hashing.SchemePBKDF2SHA224,
	hashing.SchemePBKDF2SHA256,
	hashing.SchemePBKDF2SHA384,
	hashing.SchemePBKDF2SHA512,
	hashing.SchemePhpass,
	hashing.SchemeScrypt,
	hashing.SchemeSHA256Crypt,
	hashing.SchemeSHA512Crypt,
}

// ──────────────────────────────────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────────────────────────────────

func TestNewDefaultRegistry(t *testing.T) {
	r, err := hashing.NewDefaultRegistry()
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	if r.Default() != hashing.SchemeArgon2id {
		t.Errorf("default scheme = %q, want argon2id", r.Default())
	}
	for _, s := range allSchemes {
		if !r.Has(s) {
			t.Errorf("scheme %q not registered", s)
		}
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	bcH := newTestBcryptHasher(t)
	bcH2 := newTestBcryptHasher(t)

	if _, err := hashing.NewRegistry(hashing.SchemeBcrypt2b, bcH, nil); !errors.Is(err, hashing.ErrNilHasher) {
		t.Errorf("nil hasher: expected ErrNilHasher, got %v", err)
	}
	if _, err := hashing.NewRegistry(hashing.SchemeBcrypt2b, bcH, bcH2); !errors.Is(err, hashing.ErrDuplicateScheme) {
		t.Errorf("duplicate: expected ErrDuplicateScheme, got %v", err)
	}
	if _, err := hashing.NewRegistry(hashing.SchemeArgon2id, bcH); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("missing default: expected ErrUnknownScheme, got %v", err)
	}
	if _, err := hashing.NewRegistry(hashing.SchemeBcrypt2b); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("empty: expected ErrUnknownScheme, got %v", err)
	}
}

func TestRegistry_Hasher(t *testing.T) {
	r := newTestRegistry(t)
	h, err := r.Hasher(hashing.SchemeBcrypt2y)
	if err != nil {
		t.Fatal(err)
	}
	if h.Scheme() != hashing.SchemeBcrypt2y {
		t.Errorf("Scheme() = %q", h.Scheme())
	}
	if _, err := r.Hasher("sha1-crypt"); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestRegistry_Schemes(t *testing.T) {
	got := newTestRegistry(t).Schemes()
	if len(got) != len(allSchemes) {
		t.Fatalf("Schemes() = %v, want %v", got, allSchemes)
	}
	for i := range got {
		if got[i] != allSchemes[i] {
			t.Errorf("Schemes()[%d] = %q, want %q", i, got[i], allSchemes[i])
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// DetectScheme
// ──────────────────────────────────────────────────────────────────────────────

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		hash string
		want hashing.Scheme
		ok   bool
	}{
		{"$argon2id$v=19$m=16,t=1,p=2$x$y", hashing.SchemeArgon2id, true},
		{"$argon2i$v=19$m=16,t=1,p=2$x$y", hashing.SchemeArgon2i, true},
		{bcryptPasslibHashes[hashing.SchemeBcrypt2a], hashing.SchemeBcrypt2a, true},
		{bcryptPasslibHashes[hashing.SchemeBcrypt2b], hashing.SchemeBcrypt2b, true},
		{bcryptPasslibHashes[hashing.SchemeBcrypt2y], hashing.SchemeBcrypt2y, true},
		{pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA1], hashing.SchemePBKDF2SHA1, true},
		{"$pbkdf2-sha1$12$x$y", hashing.SchemePBKDF2SHA1, true},
		{"$pbkdf2-sha224$12$x$y", hashing.SchemePBKDF2SHA224, true},
		{pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA256], hashing.SchemePBKDF2SHA256, true},
		{"$pbkdf2-sha384$12$x$y", hashing.SchemePBKDF2SHA384, true},
		{pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA512], hashing.SchemePBKDF2SHA512, true},
		{scryptPasslibHash, hashing.SchemeScrypt, true},
		{drupal7KnownHash, hashing.SchemeDrupal7, true},
		{phpassHashes[0].hash, hashing.SchemePhpass, true},
		{phpassHashes[1].hash, hashing.SchemePhpass, true},
		{md5CryptHash, hashing.SchemeMD5Crypt, true},
		{shaCryptHashes[0].hash, hashing.SchemeSHA256Crypt, true},
		{shaCryptHashes[2].hash, hashing.SchemeSHA512Crypt, true},
		{"$7$CU..../....", "", false},
		{"$2x$04$abc", "", false},
		{"$argon2d$v=19$m=16,t=1,p=2$x$y", "", false},
		{"", "", false},
		{"plaintext", "", false},
	}
	for _, tt := range tests {
		got, ok := hashing.DetectScheme(tt.hash)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DetectScheme(%q) = %q, %v; want %q, %v", tt.hash, got, ok, tt.want, tt.ok)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Make / Check / NeedsRehash / Info / Validate
// ──────────────────────────────────────────────────────────────────────────────

func TestRegistry_Make_UsesDefaultScheme(t *testing.T) {
	r := newTestRegistry(t)
	hash, err := r.Make("password")
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	s, ok := hashing.DetectScheme(hash)
	if !ok || s != hashing.SchemeArgon2id {
		t.Errorf("expected argon2id hash, detected %q", s)
	}
}

func TestRegistry_Check_DispatchesByPrefix(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		password string
		hash     string
	}{
		{"password", pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA1]},
		{"password", pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA256]},
		{"password", pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA512]},
		{"password", drupal7KnownHash},
		{drupal7RealHashes[0].password, drupal7RealHashes[0].hash},
		{phpassHashes[0].password, phpassHashes[0].hash},
		{phpassHashes[1].password, phpassHashes[1].hash},
		{"password", md5CryptHash},
		{shaCryptHashes[0].password, shaCryptHashes[0].hash},
		{shaCryptHashes[2].password, shaCryptHashes[2].hash},
	}
	for _, tt := range tests {
		ok, err := r.Check(tt.password, tt.hash)
		if err != nil || !ok {
			t.Errorf("Check(%q): ok=%v err=%v", tt.hash, ok, err)
		}
		ok, err = r.Check(tt.password+"!", tt.hash)
		if err != nil || ok {
			t.Errorf("Check wrong password (%q): ok=%v err=%v", tt.hash, ok, err)
		}
	}

	for _, s := range allSchemes {
		h, _ := r.Hasher(s)
		hash, err := h.Make("pw")
		if err != nil {
			t.Fatalf("%s Make: %v", s, err)
		}
		if ok, err := r.Check("pw", hash); err != nil || !ok {
			t.Errorf("%s: Check: ok=%v err=%v", s, ok, err)
		}
	}
}

func TestRegistry_Check_UnknownScheme(t *testing.T) {
	r := newTestRegistry(t)
	for _, hash := range []string{"not-a-hash", "$7$CU..//....", ""} {
		if _, err := r.Check("pw", hash); !errors.Is(err, hashing.ErrUnknownScheme) {
			t.Errorf("Check(%q): expected ErrUnknownScheme, got %v", hash, err)
		}
	}

	// Recognised prefix, but no hasher registered for it.
	bcOnly, _ := hashing.NewRegistry(hashing.SchemeBcrypt2b, newTestBcryptHasher(t))
	if _, err := bcOnly.Check("password", scryptPasslibHash); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("unregistered scheme: expected ErrUnknownScheme, got %v", err)
	}
}

func TestRegistry_Check_Malformed(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Check("password", "$S$garbage")
	if !errors.Is(err, hashing.ErrMalformedHash) {
		t.Errorf("expected ErrMalformedHash, got %v", err)
	}
}

func TestRegistry_NeedsRehash(t *testing.T) {
	r := newTestRegistry(t)

	current, _ := r.Make("pw")
	if needs, err := r.NeedsRehash(current); err != nil || needs {
		t.Errorf("default scheme, same params: needs=%v err=%v", needs, err)
	}

	if needs, err := r.NeedsRehash(drupal7KnownHash); err != nil || !needs {
		t.Errorf("other scheme: needs=%v err=%v", needs, err)
	}

	stronger := fastArgon2Opts()
	stronger.Time++
	a2idH, _ := hashing.NewArgon2idHasher(stronger)
	r2, _ := hashing.NewRegistry(hashing.SchemeArgon2id, a2idH)
	if needs, err := r2.NeedsRehash(current); err != nil || !needs {
		t.Errorf("default scheme, outdated params: needs=%v err=%v", needs, err)
	}

	if _, err := r.NeedsRehash("garbage"); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestRegistry_Info(t *testing.T) {
	r := newTestRegistry(t)
	info, err := r.Info(bcryptPasslibHashes[hashing.SchemeBcrypt2y])
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Scheme != hashing.SchemeBcrypt2y || info.Params["cost"] != 12 {
		t.Errorf("Info = %+v", info)
	}
	if _, err := r.Info("garbage"); !errors.Is(err, hashing.ErrUnknownScheme) {
		t.Errorf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Validate(drupal7KnownHash); err != nil {
		t.Errorf("Validate(drupal7): %v", err)
	}
	if err := r.Validate("$S$.randomsaV8zMSA/SoQQSQNqlKRRFVEwpQdzTg7QsvumDM.j0GN1"); !errors.Is(err, hashing.ErrInvalidParameters) {
		t.Errorf("single-round drupal7 hash: expected ErrInvalidParameters, got %v", err)
	}

	hash, _ := r.Make("pw")
	if err := r.Validate(hash); err != nil {
		t.Errorf("Validate(argon2id): %v", err)
	}
	if err := r.Validate(argon2HugeMemoryHash); !errors.Is(err, hashing.ErrInvalidParameters) {
		t.Errorf("argon2 m=2^32-1: expected ErrInvalidParameters, got %v", err)
	}
	if err := r.Validate("$argon2id$v=19$broken"); !errors.Is(err, hashing.ErrMalformedHash) {
		t.Errorf("expected ErrMalformedHash, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Verify / VerifyAndUpdate
// ──────────────────────────────────────────────────────────────────────────────

func TestRegistry_Verify(t *testing.T) {
	r := newTestRegistry(t)
	current, _ := r.Make("pw")

	tests := []struct {
		name        string
		password    string
		hash        string
		wantUpdated bool
		wantErr     error
	}{
		{"current hash", "pw", current, false, nil},
		{"legacy drupal7", drupal7RealHashes[0].password, drupal7RealHashes[0].hash, true, nil},
		{"legacy pbkdf2", "password", pbkdf2PasslibHashes[hashing.SchemePBKDF2SHA256], true, nil},
		{"wrong password", "wrong", drupal7KnownHash, false, hashing.ErrPasswordMismatch},
		{"legacy phpass", phpassHashes[0].password, phpassHashes[0].hash, true, nil},
		{"legacy sha512-crypt", shaCryptHashes[2].password, shaCryptHashes[2].hash, true, nil},
		{"unknown scheme", "pw", "$7$CU..../....", false, hashing.ErrUnknownScheme},
		{"argon2 memory above bound", "pw", argon2HugeMemoryHash, false, hashing.ErrInvalidParameters},
		{"salt outside alphabet", "password", "$S$Eab$c0000OpYrAZqwxGynirQbWYCb3ejW4BwGH81LJcOzbzeVd02", false, hashing.ErrMalformedHash},
		{"malformed", "pw", "$S$garbage", false, hashing.ErrMalformedHash},
		{"out of bounds", "password", "$S$.randomsaV8zMSA/SoQQSQNqlKRRFVEwpQdzTg7QsvumDM.j0GN1", false, hashing.ErrInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := r.Verify(tt.password, tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if (updated != "") != tt.wantUpdated {
				t.Fatalf("updated = %q, wantUpdated %v", updated, tt.wantUpdated)
			}
			if updated == "" {
				return
			}
			if s, _ := hashing.DetectScheme(updated); s != hashing.SchemeArgon2id {
				t.Errorf("updated hash scheme = %q, want argon2id", s)
			}
			again, err := r.Verify(tt.password, updated)
			if err != nil || again != "" {
				t.Errorf("Verify(updated) = %q, %v; want no further update", again, err)
			}
		})
	}
}

func TestRegistry_VerifyAndUpdate(t *testing.T) {
	r := newTestRegistry(t)
	current, _ := r.Make("old-pw")

	if _, err := r.VerifyAndUpdate(current, "old-pw", "old-pw"); !errors.Is(err, hashing.ErrPasswordNoChange) {
		t.Errorf("same password: expected ErrPasswordNoChange, got %v", err)
	}
	if _, err := r.VerifyAndUpdate(current, "wrong", "new-pw"); !errors.Is(err, hashing.ErrPasswordMismatch) {
		t.Errorf("wrong old password: expected ErrPasswordMismatch, got %v", err)
	}

	updated, err := r.VerifyAndUpdate(current, "old-pw", "new-pw")
	if err != nil || updated == "" {
		t.Fatalf("VerifyAndUpdate: updated=%q err=%v", updated, err)
	}
	if ok, _ := r.Check("new-pw", updated); !ok {
		t.Error("updated hash does not verify the new password")
	}
	if ok, _ := r.Check("old-pw", updated); ok {
		t.Error("updated hash still verifies the old password")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Migration workflow
// ──────────────────────────────────────────────────────────────────────────────

// A Drupal 7 user table is migrated to Argon2id one login at a time:
//   - Old hashes are still verifiable.
//   - Verify returns a replacement hash on the first successful login.
//   - After the replacement, no further update is requested.
func TestRegistry_Migration_Drupal7ToArgon2id(t *testing.T) {
	r := newTestRegistry(t)
	stored := drupal7RealHashes[1].hash
	password := drupal7RealHashes[1].password

	needs, err := r.NeedsRehash(stored)
	if err != nil || !needs {
		t.Fatalf("expected NeedsRehash=true for legacy drupal7: needs=%v err=%v", needs, err)
	}

	updated, err := r.Verify(password, stored)
	if err != nil || updated == "" {
		t.Fatalf("first login: updated=%q err=%v", updated, err)
	}
	stored = updated

	needs, err = r.NeedsRehash(stored)
	if err != nil || needs {
		t.Fatalf("new argon2id hash should not need rehash: needs=%v err=%v", needs, err)
	}
	if updated, err := r.Verify(password, stored); err != nil || updated != "" {
		t.Fatalf("second login: updated=%q err=%v", updated, err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────────────────────────────────

func TestRegistry_ConcurrentMakeCheck(t *testing.T) {
	r := newTestRegistry(t)
	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			h, _ := r.Hasher(allSchemes[i%len(allSchemes)])
			hash, err := h.Make("concurrent-pw")
			if err != nil {
				errs <- err
				return
			}
			ok, err := r.Check("concurrent-pw", hash)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- errors.New("Check returned false for correct password")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
