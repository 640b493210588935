package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripNbsp(t *testing.T) {
	require.Equal(t, "1234567", StripNbsp("&nbsp;1234567&nbsp;"))
	require.Equal(t, "AV SIEMPRE VIVA 742", StripNbsp(" AV SIEMPRE VIVA 742  "))
	require.Equal(t, "", StripNbsp("&nbsp;"))
}

func TestCanonicalize(t *testing.T) {
	require.Equal(t, Canonicalize("Contraseña incorrecta"), Canonicalize("ContraseÃ±a incorrecta"))
	require.Equal(t, "usuarionoregistrado", Canonicalize(" Usuario  no registrado "))
	require.NotEqual(t, Canonicalize("Usuario no registrado"), Canonicalize("Contraseña incorrecta"))
}
