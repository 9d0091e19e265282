package printshop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/homepage"
	"github.com/eringen/printshop/sectioncache"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

func (v ViewFuncs) withDefaults() ViewFuncs {
	if v.AdminLogin == nil {
		v.AdminLogin = defaultAdminLogin
	}
	if v.AdminDashboard == nil {
		v.AdminDashboard = defaultAdminDashboard
	}
	if v.NotFound == nil {
		v.NotFound = func() templ.Component { return messagePage("Not found", "This page does not exist.") }
	}
	if v.ServerError == nil {
		v.ServerError = func() templ.Component { return messagePage("Error", "Something went wrong. Try again later.") }
	}
	return v
}

func page(title string, body func(w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html lang="pt-BR"><head><meta charset="utf-8"><title>%s</title>`+
			`<link rel="stylesheet" href="/public/admin.css"><script src="/public/admin.js" defer></script></head><body>`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func messagePage(title, msg string) templ.Component {
	return page(title, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, `<main><h1>%s</h1><p>%s</p></main>`, templ.EscapeString(title), templ.EscapeString(msg))
		return err
	})
}

func defaultAdminLogin(showError bool, csrfToken string) templ.Component {
	return page("Login", func(w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<main><h1>Admin</h1>`)
		if showError {
			b.WriteString(`<p class="error">Invalid password.</p>`)
		}
		b.WriteString(`<form method="post" action="/admin/login/">`)
		fmt.Fprintf(&b, `<input type="hidden" name="_csrf" value="%s">`, templ.EscapeString(csrfToken))
		b.WriteString(`<input type="password" name="password" autofocus required><button type="submit">Login</button></form></main>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func defaultAdminDashboard(view sectioncache.View, products []homepage.ProductSummary, csrfToken string) templ.Component {
	return page("Homepage", func(w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<main data-csrf="%s"><h1>Homepage sections</h1>`, templ.EscapeString(csrfToken))
		if view.Err != nil {
			fmt.Fprintf(&b, `<p class="error" role="alert">%s</p>`, templ.EscapeString(view.Err.Error()))
		}
		switch {
		case view.IsLoading:
			b.WriteString(`<p>Loading…</p>`)
		case len(view.Sections) == 0:
			b.WriteString(`<p>No sections yet.</p>`)
		default:
			b.WriteString(`<ol class="sections">`)
			for _, s := range view.Sections {
				state := "active"
				if !s.Active {
					state = "hidden"
				}
				fmt.Fprintf(&b, `<li data-id="%s" data-position="%d"><strong>%s</strong> <small>%s · %s · %s</small><ol class="items">`,
					templ.EscapeString(s.ID), s.Position, templ.EscapeString(s.Title),
					templ.EscapeString(string(s.LayoutKind)), templ.EscapeString(string(s.Background)), state)
				for _, it := range s.Items {
					name := it.ProductID
					if it.Product != nil {
						name = it.Product.Name
					}
					fmt.Fprintf(&b, `<li data-id="%s" data-position="%d">%s</li>`,
						templ.EscapeString(it.ID), it.Position, templ.EscapeString(name))
				}
				b.WriteString(`</ol></li>`)
			}
			b.WriteString(`</ol>`)
		}
		fmt.Fprintf(&b, `<p>%d products available.</p>`, len(products))
		b.WriteString(`<form method="post" action="/admin/logout/">`)
		fmt.Fprintf(&b, `<input type="hidden" name="_csrf" value="%s">`, templ.EscapeString(csrfToken))
		b.WriteString(`<button type="submit">Logout</button></form></main>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
