package sadm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"
	"waterbills-backend/lib/telemetry"
	"waterbills-backend/lib/testutil"
	"waterbills-backend/lib/waterbill"

	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	t      *testing.T
	broken bool
	bills  map[string][]byte
}

func (p *fakePortal) baseURL(r *http.Request) string {
	return "http://" + r.Host
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("JSESSIONID")
	return err == nil && c.Value == "ok"
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.broken {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `<html><body><h1>503</h1></body></html>`)
		return
	}

	switch r.URL.Path {
	case "/eAyd/autenticacione":
		r.ParseForm()
		if _, ok := r.PostForm["command"]; !ok {
			p.t.Error("login post is missing the command field")
		}
		if r.PostFormValue("email") == "homer@example.com" &&
			r.PostFormValue("password") == "donuts" {
			http.SetCookie(w, &http.Cookie{
				Name: "JSESSIONID", Value: "ok", Path: "/",
				Expires: time.Now().Add(time.Hour),
			})
		}
		fmt.Fprint(w, `<html><body>redirigiendo...</body></html>`)

	case "/eAyd/Inicio.jsp":
		if !p.loggedIn(r) {
			fmt.Fprint(w, `<html><body><form action="/eAyd/autenticacione">
				<input type="text" name="email" />
				<input type="password" name="password" />
			</form></body></html>`)
			return
		}
		base := p.baseURL(r)
		fmt.Fprintf(w, `<html><body>
			<table id="tabla_servicios1">
			<tr><td>No.</td><td>Contrato</td><td>Titular</td><td>Domicilio</td><td>Corte</td><td>Importe</td><td>Estado</td></tr>
			<tr><td>1</td><td>30405060</td><td>CASA SIMPSON</td><td>AV SIEMPRE VIVA 742</td><td>15/07/2024</td><td>$1,250.00</td><td><font>VENCIDO</font></td></tr>
			<tr><td>2</td><td>70809010</td><td>DEPTO FLANDERS</td><td>CALLE FALSA 123</td><td>20/07/2024</td><td>$310.50</td><td><font>VIGENTE</font></td></tr>
			<tr><td>3</td><td>55555555</td><td>TABERNA MOE</td><td>AV EVERGREEN 10</td><td>25/07/2024</td><td>$980.25</td><td><font>VIGENTE</font></td></tr>
			<tr><td colspan="7">Total adeudo: $2,540.75</td></tr>
			</table>
			<a href="%s/Solicitudes/solicitudcfdi?idpdf=AB30405060">Junio 2024 (pdf)</a>
			<a href="%s/Solicitudes/solicitudcfdi?idpdf=CD70809010">Julio 2024 (pdf)</a>
			</body></html>`, base, base)

	case "/Solicitudes/solicitudcfdi":
		if !p.loggedIn(r) {
			fmt.Fprint(w, `<html><body>no session</body></html>`)
			return
		}
		pdf, ok := p.bills[r.URL.Query().Get("idpdf")]
		if !ok {
			fmt.Fprint(w, `<html><body>documento no disponible</body></html>`)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, baseUrl, username, password string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:             baseUrl,
		Username:            username,
		Password:            password,
		CookieDir:           t.TempDir(),
		DocumentLinkPattern: "^" + regexp.QuoteMeta(baseUrl+"/Solicitudes/solicitudcfdi?idpdf="),
	})
	require.NoError(t, err)
	return client
}

func TestClient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/sadm")
	defer cleanup()

	portal := &fakePortal{
		t: t,
		bills: map[string][]byte{
			"AB30405060": testutil.BuildPDF([]string{"CFDI 30405060"}),
			"CD70809010": testutil.BuildPDF([]string{"CFDI 70809010"}),
		},
	}
	server := httptest.NewServer(portal)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		client := newTestClient(t, server.URL, "homer@example.com", "wrong")
		err := client.Login(ctx)
		require.ErrorIs(t, err, waterbill.ErrBadPassword)
	}

	client := newTestClient(t, server.URL, "homer@example.com", "donuts")
	require.NoError(t, client.Login(ctx))

	result, err := client.ListAccountsWithBills(ctx)
	require.NoError(t, err)
	require.Len(t, result.Services, 3)

	first := result.Services[0]
	require.Equal(t, "30405060", first.ExternalID)
	require.Equal(t, 1250.00, first.Amount)
	require.Equal(t, "2024-06", first.PeriodHint)
	require.NotNil(t, first.Document)
	require.Equal(t, "2024-06-01", first.Document.BillingPeriod)

	second := result.Services[1]
	require.Equal(t, "70809010", second.ExternalID)
	require.Equal(t, 310.50, second.Amount)
	require.NotNil(t, second.Document)
	require.Equal(t, "2024-07-01", second.Document.BillingPeriod)

	// third contract has no document link, the account still comes back
	third := result.Services[2]
	require.Equal(t, "55555555", third.ExternalID)
	require.Equal(t, 980.25, third.Amount)
	require.Nil(t, third.Document)

	require.Len(t, result.Failures, 1)
	require.Equal(t, "55555555", result.Failures[0].ExternalID)
	require.ErrorIs(t, result.Failures[0].Err, waterbill.ErrNoDocumentLink)
}

func TestClientProviderUnavailable(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/sadm/unavailable")
	defer cleanup()

	portal := &fakePortal{t: t, broken: true}
	server := httptest.NewServer(portal)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	client := newTestClient(t, server.URL, "homer@example.com", "donuts")
	err := client.Login(ctx)
	require.ErrorIs(t, err, waterbill.ErrProviderUnavailable)
}
