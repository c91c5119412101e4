package cipher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// HashAccountPassword reproduces the salted-MD5 scheme spec.md §4.2 and
// §4.5 describe for both client login and GM login:
// lowercase hex of MD5(password + "_" + regtime + "_salt").
func HashAccountPassword(password, regtime string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_salt", password, regtime)))
	return hex.EncodeToString(sum[:])
}
