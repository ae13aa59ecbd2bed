// Package letters holds the correspondence content: one enciphered letter per
// sorted powerup path, plus the plaintext used to judge a decipherment.
//
// Content is read once at startup so that judging an attempt inside a tick
// never touches the filesystem.
package letters

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// SubstringKey is the one letter whose answer only has to appear somewhere in
// the submission instead of matching word for word.
const SubstringKey = "ABEFHI"

type Document struct {
	Key        string `json:"key"`
	Ciphertext string `json:"ciphertext"`
	Plaintext  string `json:"-"`
	// Fallback is set when Key had no content and the default pair was served.
	Fallback bool `json:"fallback"`
}

type Library struct {
	docs     map[string]Document
	fallback Document
	digest   string
}

const defaultPlaintext = "Dear reader,\nthe letter you are looking for has not been written yet.\nKeep delivering."

// Builtin returns a library that knows no letters and serves only the default pair.
func Builtin() *Library {
	l := &Library{
		docs: map[string]Document{},
		fallback: Document{
			Ciphertext: caesar(defaultPlaintext, 3),
			Plaintext:  defaultPlaintext,
			Fallback:   true,
		},
	}
	l.digest = l.computeDigest()
	return l
}

// Load reads dir/encrypted/<KEY>.txt with its dir/decrypted/<KEY>.txt partner.
// dir/0.txt and dir/0_plaintext.txt, when both exist, replace the default pair.
func Load(dir string) (*Library, error) {
	l := Builtin()

	encDir := filepath.Join(dir, "encrypted")
	ents, err := os.ReadDir(encDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".txt")
		if key != SortKey(key) {
			return nil, fmt.Errorf("letters: %s: key must be sorted (want %s)", e.Name(), SortKey(key))
		}
		cipher, err := os.ReadFile(filepath.Join(encDir, e.Name()))
		if err != nil {
			return nil, err
		}
		plain, err := os.ReadFile(filepath.Join(dir, "decrypted", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("letters: %s: missing plaintext: %w", key, err)
		}
		l.docs[key] = Document{Key: key, Ciphertext: string(cipher), Plaintext: string(plain)}
	}

	cipher, errC := os.ReadFile(filepath.Join(dir, "0.txt"))
	plain, errP := os.ReadFile(filepath.Join(dir, "0_plaintext.txt"))
	if errC == nil && errP == nil {
		l.fallback = Document{Ciphertext: string(cipher), Plaintext: string(plain), Fallback: true}
	}

	l.digest = l.computeDigest()
	return l, nil
}

// Add registers a document in memory. Intended for tests and tooling.
func (l *Library) Add(key, ciphertext, plaintext string) {
	key = SortKey(key)
	l.docs[key] = Document{Key: key, Ciphertext: ciphertext, Plaintext: plaintext}
	l.digest = l.computeDigest()
}

func (l *Library) Known(key string) bool {
	_, ok := l.docs[key]
	return ok
}

func (l *Library) Keys() []string {
	out := make([]string, 0, len(l.docs))
	for k := range l.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fetch never fails: unknown keys get the default pair.
func (l *Library) Fetch(key string) Document {
	if d, ok := l.docs[key]; ok {
		return d
	}
	d := l.fallback
	d.Key = key
	return d
}

func (l *Library) Ciphertext(key string) (string, bool) {
	d := l.Fetch(key)
	return d.Ciphertext, d.Fallback
}

// Deciphered judges a submission against the plaintext served for key.
func (l *Library) Deciphered(key, text string) bool {
	want := Words(l.Fetch(key).Plaintext)
	got := Words(text)
	if len(want) == 0 {
		return false
	}
	if key == SubstringKey {
		return strings.Contains(strings.Join(got, " "), strings.Join(want, " "))
	}
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Digest identifies the loaded content set.
func (l *Library) Digest() string { return l.digest }

func (l *Library) computeDigest() string {
	h := blake3.New(32, nil)
	for _, k := range l.Keys() {
		d := l.docs[k]
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(d.Ciphertext))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(d.Plaintext))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte(l.fallback.Ciphertext))
	return hex.EncodeToString(h.Sum(nil))
}

func caesar(s string, shift int) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = 'a' + byte((int(c-'a')+shift)%26)
		case c >= 'A' && c <= 'Z':
			b[i] = 'A' + byte((int(c-'A')+shift)%26)
		}
	}
	return string(b)
}
