package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form method="post" action="IngresoSD.aspx">
<input type="hidden" name="__VIEWSTATE" value="dDwxMjM0NTY3ODk7Oz4=" />
<input type="hidden" name="__VIEWSTATEGENERATOR" value="CA0B0334" />
<input type="hidden" name="__EVENTVALIDATION" value="/wEWAgL%2B=" />
<input type="text" name="txtUsuario1" value="" />
<input type="password" name="txtContra1" value="" />
<input type="submit" name="btnIngresar" value="Ingresar" />
<input type="checkbox" value="orphan" />
</form>
</body></html>`

func TestFormValues(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loginPage))
	if err != nil {
		t.Fatal(err)
	}

	state := FormValues(doc)
	require.Equal(t, "dDwxMjM0NTY3ODk7Oz4=", state["__VIEWSTATE"])
	require.Equal(t, "CA0B0334", state["__VIEWSTATEGENERATOR"])
	require.Equal(t, "/wEWAgL%2B=", state["__EVENTVALIDATION"])
	require.Equal(t, "Ingresar", state["btnIngresar"])
	require.Equal(t, "", state["txtUsuario1"])
	// unnamed inputs never make it into the replayed state
	require.Len(t, state, 6)
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
		<a href="https://example.com/a?id=1">  Junio   2024 (pdf) </a>
		<a href="https://example.com/b">plain</a>
	</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Len(t, anchors, 2)
	require.Equal(t, "Junio 2024 (pdf)", anchors[0].Name)
	require.Equal(t, "https://example.com/a?id=1", anchors[0].Href)
}
