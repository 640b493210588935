package siapa

import (
	"testing"
	"waterbills-backend/lib/waterbill"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestClassifySession(t *testing.T) {
	{
		doc, err := parseDocument([]byte(`<html><body>
			<span id="lblTitulo">Bienvenido</span>
		</body></html>`))
		require.NoError(t, err)
		require.Equal(t, waterbill.StatusAuthenticated, classifySession(doc))
	}
	{
		doc, err := parseDocument([]byte(`<html><body>
			<div id="cvMensajes1"><font color="Red">Contraseña incorrecta</font></div>
		</body></html>`))
		require.NoError(t, err)
		require.Equal(t, waterbill.StatusBadPassword, classifySession(doc))
	}
	{
		// the portal sometimes serves the marker double-encoded
		doc, err := parseDocument([]byte(`<html><body>
			<div id="cvMensajes1"><font color="Red">ContraseÃ±a incorrecta</font></div>
		</body></html>`))
		require.NoError(t, err)
		require.Equal(t, waterbill.StatusBadPassword, classifySession(doc))
	}
	{
		doc, err := parseDocument([]byte(`<html><body>
			<div id="cvMensajes1"><font color="Red">Usuario no registrado</font></div>
		</body></html>`))
		require.NoError(t, err)
		require.Equal(t, waterbill.StatusUnknownUser, classifySession(doc))
	}
	{
		// neither a message nor a session marker
		doc, err := parseDocument([]byte(`<html><body><h1>503</h1></body></html>`))
		require.NoError(t, err)
		require.Equal(t, waterbill.StatusServerError, classifySession(doc))
	}
}

const servicesFixture = `<html><body>
<table id="dgCuentas">
<tr><td>Cuenta</td><td>Nombre</td><td>Domicilio</td><td></td></tr>
<tr>
	<td><font>&nbsp;1234567&nbsp;</font></td>
	<td><font>CASA SIMPSON</font></td>
	<td><font> AV SIEMPRE VIVA 742 </font></td>
	<td><input type="image" name="dgCuentas$ctl02$imgb2" /></td>
</tr>
<tr><td colspan="4">publicidad</td></tr>
<tr>
	<td><font>7654321</font></td>
	<td><font>DEPTO FLANDERS</font></td>
	<td><font>CALLE FALSA 123</font></td>
	<td><input type="image" name="dgCuentas$ctl03$imgb2" /></td>
</tr>
</table>
</body></html>`

func TestServicesFromPage(t *testing.T) {
	doc, err := parseDocument([]byte(servicesFixture))
	require.NoError(t, err)

	records, err := servicesFromPage(doc)
	require.NoError(t, err)

	want := []waterbill.ServiceRecord{
		{ExternalID: "1234567", Names: "CASA SIMPSON", Address: "AV SIEMPRE VIVA 742"},
		{ExternalID: "7654321", Names: "DEPTO FLANDERS", Address: "CALLE FALSA 123"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestServicesFromPageMissingTable(t *testing.T) {
	doc, err := parseDocument([]byte(`<html><body></body></html>`))
	require.NoError(t, err)

	_, err = servicesFromPage(doc)
	var extractionErr *waterbill.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
}

func TestAmountFromPage(t *testing.T) {
	{
		doc, err := parseDocument([]byte(
			`<html><body><div id="datosCta">Adeudo actual: $1,482.50*</div></body></html>`))
		require.NoError(t, err)

		amount, err := amountFromPage(doc)
		require.NoError(t, err)
		require.Equal(t, 1482.50, amount)
	}
	{
		// trailing dash marks a credit balance
		doc, err := parseDocument([]byte(
			`<html><body><div id="datosCta">Saldo: $320.00-</div></body></html>`))
		require.NoError(t, err)

		amount, err := amountFromPage(doc)
		require.NoError(t, err)
		require.Equal(t, -320.00, amount)
	}
	{
		doc, err := parseDocument([]byte(
			`<html><body><div id="datosCta">sin datos</div></body></html>`))
		require.NoError(t, err)

		_, err = amountFromPage(doc)
		require.Error(t, err)
	}
}
