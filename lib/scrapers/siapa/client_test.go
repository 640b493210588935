package siapa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"waterbills-backend/lib/telemetry"
	"waterbills-backend/lib/testutil"
	"waterbills-backend/lib/waterbill"

	"github.com/stretchr/testify/require"
)

const (
	loginViewstate = "dDwtLOGIN"
	mainViewstate  = "dDwtMAIN"
)

type fakePortal struct {
	t     *testing.T
	bills map[string][]byte
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("ASPSESSION")
	return err == nil && c.Value == "ok"
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/RegistroWeb/IngresoSD.aspx":
		if r.Method == http.MethodGet {
			fmt.Fprintf(w, `<html><body><form>
				<input type="hidden" name="__VIEWSTATE" value="%s" />
				<input type="hidden" name="__EVENTVALIDATION" value="ev1" />
				<input type="text" name="txtUsuario1" value="" />
				<input type="password" name="txtContra1" value="" />
			</form></body></html>`, loginViewstate)
			return
		}
		r.ParseForm()
		// the anti-tampering state must be replayed verbatim
		if r.PostFormValue("__VIEWSTATE") != loginViewstate ||
			r.PostFormValue("__EVENTVALIDATION") != "ev1" {
			p.t.Error("login postback did not replay the form state")
			fmt.Fprint(w, `<html><body></body></html>`)
			return
		}
		switch {
		case r.PostFormValue("txtUsuario1") != "homer":
			fmt.Fprint(w, `<html><body><div id="cvMensajes1"><font>Usuario no registrado</font></div></body></html>`)
		case r.PostFormValue("txtContra1") != "donuts":
			fmt.Fprint(w, `<html><body><div id="cvMensajes1"><font>Contraseña incorrecta</font></div></body></html>`)
		default:
			http.SetCookie(w, &http.Cookie{
				Name: "ASPSESSION", Value: "ok", Path: "/",
				Expires: time.Now().Add(time.Hour),
			})
			fmt.Fprint(w, `<html><body><span id="lblTitulo">Bienvenido</span></body></html>`)
		}

	case "/RegistroWeb/webform2.aspx":
		if !p.loggedIn(r) {
			fmt.Fprint(w, `<html><body>no session</body></html>`)
			return
		}
		if r.Method == http.MethodGet {
			fmt.Fprintf(w, `<html><body>
				<input type="hidden" name="__VIEWSTATE" value="%s" />
				%s</body></html>`, mainViewstate, servicesFixture)
			return
		}
		r.ParseForm()
		if r.PostFormValue("__VIEWSTATE") != mainViewstate {
			p.t.Error("bill postback did not replay the form state")
		}
		for button, pdf := range p.bills {
			if r.PostFormValue(button+".x") != "" && r.PostFormValue(button+".y") != "" {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write(pdf)
				return
			}
		}
		// stale state produces an error page, not a document
		fmt.Fprint(w, `<html><body>error</body></html>`)

	case "/RegistroWeb/PagarVerif.aspx":
		if !p.loggedIn(r) {
			fmt.Fprint(w, `<html><body>no session</body></html>`)
			return
		}
		amounts := map[string]string{
			"1234567": "$482.50",
			"7654321": "$1,120.00*",
		}
		fmt.Fprintf(w, `<html><body><div id="datosCta">Adeudo: %s</div></body></html>`,
			amounts[r.URL.Query().Get("pcta")])

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, baseUrl, username, password string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:   baseUrl,
		Username:  username,
		Password:  password,
		CookieDir: t.TempDir(),
	})
	require.NoError(t, err)
	return client
}

func TestClient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/siapa")
	defer cleanup()

	portal := &fakePortal{
		t: t,
		bills: map[string][]byte{
			"dgCuentas$ctl02$imgb2": testutil.BuildPDF([]string{
				"CASA SIMPSON",
				"Periodo: 01.06.2024 al 30.06.2024",
			}),
			"dgCuentas$ctl03$imgb2": testutil.BuildPDF([]string{
				"DEPTO FLANDERS",
				"Periodo: 01.07.2024 al 31.07.2024",
			}),
		},
	}
	server := httptest.NewServer(portal)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		client := newTestClient(t, server.URL, "homer", "wrong")
		err := client.Login(ctx)
		require.ErrorIs(t, err, waterbill.ErrBadPassword)
	}
	{
		client := newTestClient(t, server.URL, "marge", "donuts")
		err := client.Login(ctx)
		require.ErrorIs(t, err, waterbill.ErrUnknownUser)
	}

	client := newTestClient(t, server.URL, "homer", "donuts")
	require.NoError(t, client.Login(ctx))

	result, err := client.ListAccountsWithBills(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Services, 2)

	first := result.Services[0]
	require.Equal(t, "1234567", first.ExternalID)
	require.Equal(t, 482.50, first.Amount)
	require.NotNil(t, first.Document)
	require.Equal(t, "2024-06-01", first.Document.BillingPeriod)
	require.Equal(t, "CASA SIMPSON", first.Document.AccountName)
	require.Greater(t, first.NameCorrelation, 0.9)

	second := result.Services[1]
	require.Equal(t, "7654321", second.ExternalID)
	require.Equal(t, 1120.00, second.Amount)
	require.NotNil(t, second.Document)
	require.Equal(t, "2024-07-01", second.Document.BillingPeriod)
}

func TestClientBadDocumentDoesNotAbortBatch(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/siapa/partial")
	defer cleanup()

	portal := &fakePortal{
		t: t,
		bills: map[string][]byte{
			// first account's postback yields an HTML error page
			"dgCuentas$ctl03$imgb2": testutil.BuildPDF([]string{
				"DEPTO FLANDERS",
				"Periodo: 01.07.2024 al 31.07.2024",
			}),
		},
	}
	server := httptest.NewServer(portal)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	client := newTestClient(t, server.URL, "homer", "donuts")
	result, err := client.ListAccountsWithBills(ctx)
	require.NoError(t, err)

	// both accounts survive, the broken one without a document
	require.Len(t, result.Services, 2)
	require.Nil(t, result.Services[0].Document)
	require.NotNil(t, result.Services[1].Document)

	require.Len(t, result.Failures, 1)
	require.Equal(t, "1234567", result.Failures[0].ExternalID)
	require.ErrorIs(t, result.Failures[0].Err, waterbill.ErrNotADocument)
}
