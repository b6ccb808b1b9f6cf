package callbacks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIsDeterministic(t *testing.T) {
	a := Encode("PaymentScreen.handle_fake_payment", "Pay", 42)
	b := Encode("PaymentScreen.handle_fake_payment", "Pay", 42)
	assert.Equal(t, a, b)
}

func TestEncodeChangesWithEachInput(t *testing.T) {
	base := Encode("MainMenu.move", "Back", 1)
	assert.NotEqual(t, base, Encode("Settings.move", "Back", 1))
	assert.NotEqual(t, base, Encode("MainMenu.move", "Next", 1))
	assert.NotEqual(t, base, Encode("MainMenu.move", "Back", 2))
}

func TestEncodeFitsCallbackLimit(t *testing.T) {
	data := Encode("AVeryLongScreenNameThatKeepsGoing.move_along_route", "a caption that is quite long too", math.MinInt64)
	assert.LessOrEqual(t, len(data), MaxDataLen)
}

func TestParseRoundTrip(t *testing.T) {
	data := Encode("MainMenu.jump", "Start", 987654321)
	tok, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Checksum("MainMenu.jump"), tok.Handler)
	assert.Equal(t, Checksum("Start"), tok.Button)
	assert.Equal(t, int64(987654321), tok.UserID)
	assert.Equal(t, data, tok.String())
	assert.Equal(t, tok.Handler, HandlerKey(data))
}

func TestParseRejectsForeignData(t *testing.T) {
	for _, data := range []string{"", "\fmenu|1", "abc,button=x", "abc,btn=x,user_id=1", "abc,button=x,user_id=z"} {
		_, err := Parse(data)
		assert.ErrorIsf(t, err, ErrMalformedToken, "data %q", data)
	}
}
