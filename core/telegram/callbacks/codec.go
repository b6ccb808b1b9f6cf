// Package callbacks encodes and decodes the callback data attached to inline buttons.
//
// A token has the form "<handler>,button=<caption>,user_id=<uid>" where handler and
// caption are checksums, so the whole token stays under Telegram's 64 byte limit.
package callbacks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is the callback_data limit imposed by the Bot API.
const MaxDataLen = 64

const (
	buttonPart = "button="
	userPart   = "user_id="
)

// ErrMalformedToken is returned by Parse for data not produced by Encode.
var ErrMalformedToken = errors.New("callbacks: malformed token")

// Token is the decoded form of callback data.
type Token struct {
	Handler string
	Button  string
	UserID  int64
}

// String re-encodes the token.
func (t Token) String() string {
	return t.Handler + "," + buttonPart + t.Button + "," + userPart + strconv.FormatInt(t.UserID, 10)
}

// Checksum returns a short stable digest of s.
func Checksum(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 36)
}

// Encode builds callback data for a button bound to the named handler.
func Encode(handlerName, caption string, userID int64) string {
	return Token{
		Handler: Checksum(handlerName),
		Button:  Checksum(caption),
		UserID:  userID,
	}.String()
}

// Parse decodes callback data produced by Encode.
func Parse(data string) (Token, error) {
	parts := strings.Split(data, ",")
	if len(parts) != 3 || parts[0] == "" {
		return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, data)
	}
	button, ok := strings.CutPrefix(parts[1], buttonPart)
	if !ok {
		return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, data)
	}
	rawUID, ok := strings.CutPrefix(parts[2], userPart)
	if !ok {
		return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, data)
	}
	uid, err := strconv.ParseInt(rawUID, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: user id: %v", ErrMalformedToken, err)
	}
	return Token{Handler: parts[0], Button: button, UserID: uid}, nil
}

// HandlerKey returns the handler checksum of raw callback data without full validation.
// Unknown formats yield the data itself so lookups simply miss.
func HandlerKey(data string) string {
	if i := strings.IndexByte(data, ','); i > 0 {
		return data[:i]
	}
	return strings.TrimSpace(data)
}

// FromContext extracts the token of the callback carried by c.
func FromContext(c tele.Context) (Token, bool) {
	cb := c.Callback()
	if cb == nil {
		return Token{}, false
	}
	tok, err := Parse(cb.Data)
	if err != nil {
		return Token{}, false
	}
	return tok, true
}
