package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Chromium's legacy cookie encryption is PBKDF2("saltysalt", sha1).
	"errors"
	"runtime"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	aesCBCSalt      = "saltysalt"
	aesCBCIV        = "                " // 16 spaces
	aesCBCKeyLen    = 16
	linuxIterations = 1
	linuxPassword   = "peanuts"
)

// decryptChromiumValue decrypts a v10/v11 encrypted cookie value where the
// key is derivable without an OS keychain round trip. On Linux the basic
// password store uses a fixed password; elsewhere the plaintext `value`
// column is the only supported source and we report failure.
func decryptChromiumValue(encrypted []byte, metaVersion int64) (string, bool) {
	if runtime.GOOS != "linux" {
		return "", false
	}
	key := pbkdf2.Key([]byte(linuxPassword), []byte(aesCBCSalt), linuxIterations, aesCBCKeyLen, sha1.New)
	plain, err := decryptAESCBC(encrypted, key, metaVersion)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(plain) {
		return "", false
	}
	return string(plain), true
}

func decryptAESCBC(encrypted, key []byte, metaVersion int64) ([]byte, error) {
	if len(encrypted) <= 3 {
		return nil, errors.New("encrypted value too short")
	}
	if !hasVersionPrefix(encrypted) {
		return nil, errors.New("missing v## prefix")
	}

	ciphertext := encrypted[3:]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("cipher input not full blocks")
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(aesCBCIV)).CryptBlocks(out, ciphertext)

	out, err = removePKCS7Padding(out)
	if err != nil {
		return nil, err
	}
	// Meta version 24+ prefixes the plaintext with a SHA-256 of the host key.
	if metaVersion >= 24 && len(out) >= 32 {
		out = out[32:]
	}
	return out, nil
}

func hasVersionPrefix(b []byte) bool {
	return len(b) >= 3 && b[0] == 'v' && isDigit(b[1]) && isDigit(b[2])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func removePKCS7Padding(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, nil
	}
	n := int(b[len(b)-1])
	if n <= 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("invalid padding length")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}
