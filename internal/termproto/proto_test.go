package termproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeOptionalFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"auth","token":"tok1","session_id":"sess1"}`))
	require.NoError(t, err)
	require.Equal(t, TypeAuth, msg.Type)
	require.Equal(t, "tok1", msg.Token)
	require.Equal(t, "sess1", msg.SessionID)

	msg, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	require.Equal(t, TypePing, msg.Type)
	require.Empty(t, msg.Token)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	data, err := Encode(Message{Type: TypePing})
	require.NoError(t, err)
	require.Equal(t, `{"type":"ping"}`, string(data))

	data, err = Encode(Message{Type: TypeResize, Cols: 120, Rows: 40})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"resize","cols":120,"rows":40}`, string(data))
}
