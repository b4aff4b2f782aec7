// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const ieeeBibtex = `@ARTICLE{771073, author={Moore, Gordon E.},
	journal={Proceedings of the IEEE},
	title={Cramming More Components Onto Integrated Circuits},
	year={1998}, volume={86}, number={1}, pages={82-85},
	doi={10.1109/JPROC.1998.658762}}`

// ieeeTestServer stands in for both doi.org and the Xplore citation
// endpoint. The resolver path redirects to a document page the way
// doi.org does for IEEE DOIs.
func ieeeTestServer(t *testing.T, docNum string, citeStatus int, citeBody string) (*httptest.Server, func()) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/resolve/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/document/"+docNum+"/", http.StatusFound)
	})
	mux.HandleFunc("/document/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>document page</html>")
	})
	mux.HandleFunc("/cite", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("recordIds"); got != docNum {
			t.Errorf("recordIds = %q, want %q", got, docNum)
		}
		if got := r.PostForm.Get("download-format"); got != "download-bibtex" {
			t.Errorf("download-format = %q, want %q", got, "download-bibtex")
		}
		w.WriteHeader(citeStatus)
		fmt.Fprint(w, citeBody)
	})
	ts := httptest.NewServer(mux)

	oldResolver, oldCite := ieeeResolverBase, ieeeCiteURL
	ieeeResolverBase = ts.URL + "/resolve/"
	ieeeCiteURL = ts.URL + "/cite"
	restore := func() {
		ieeeResolverBase, ieeeCiteURL = oldResolver, oldCite
		ts.Close()
	}
	return ts, restore
}

func TestIEEEFetch(t *testing.T) {
	ts, restore := ieeeTestServer(t, "771073", http.StatusOK, ieeeBibtex)
	defer restore()

	i := NewIEEE(ts.Client(), "bibcomplete-test")
	rec, err := i.Fetch(context.Background(), "10.1109/jproc.1998.658762", Hint{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if rec.Source != "ieee" {
		t.Errorf("Source = %q, want %q", rec.Source, "ieee")
	}
	if rec.EntryType != "article" {
		t.Errorf("EntryType = %q, want %q", rec.EntryType, "article")
	}
	if got := rec.Fields["journal"]; got != "Proceedings of the IEEE" {
		t.Errorf("journal = %q, want %q", got, "Proceedings of the IEEE")
	}
	if got := rec.Fields["pages"]; got != "82-85" {
		t.Errorf("pages = %q, want %q", got, "82-85")
	}
}

func TestIEEEFetchCitationNotFound(t *testing.T) {
	ts, restore := ieeeTestServer(t, "771073", http.StatusNotFound, "")
	defer restore()

	i := NewIEEE(ts.Client(), "test")
	_, err := i.Fetch(context.Background(), "10.1109/jproc.1998.658762", Hint{})
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
	if got := HTTPStatus(err); got != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", got)
	}
}

func TestIEEEFetchCitationForbidden(t *testing.T) {
	ts, restore := ieeeTestServer(t, "771073", http.StatusForbidden, "")
	defer restore()

	i := NewIEEE(ts.Client(), "test")
	_, err := i.Fetch(context.Background(), "10.1109/jproc.1998.658762", Hint{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if got := HTTPStatus(err); got != http.StatusForbidden {
		t.Errorf("HTTPStatus = %d, want 403", got)
	}
}

func TestIEEEFetchResolverNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	old := ieeeResolverBase
	ieeeResolverBase = ts.URL + "/"
	defer func() { ieeeResolverBase = old }()

	i := NewIEEE(ts.Client(), "test")
	_, err := i.Fetch(context.Background(), "10.1109/nosuch", Hint{})
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}

func TestIEEEFetchNoDocumentNumber(t *testing.T) {
	// The DOI resolves, but not to an Xplore document page.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>landing page</html>")
	}))
	defer ts.Close()

	old := ieeeResolverBase
	ieeeResolverBase = ts.URL + "/"
	defer func() { ieeeResolverBase = old }()

	i := NewIEEE(ts.Client(), "test")
	_, err := i.Fetch(context.Background(), "10.1109/jproc.1998.658762", Hint{})
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("error = %v, want ErrEmpty", err)
	}
}
