package site

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var current = time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func TestFolderName(t *testing.T) {
	t.Parallel()

	if got := FolderName("North Side Clinic"); got != "North_Side_Clinic" {
		t.Fatalf("folder=%q", got)
	}
	if got := ChartFileName("Colorectal Screen"); got != "Colorectal_Screen.png" {
		t.Fatalf("chart file=%q", got)
	}
}

func TestProviderPage_Dropdowns(t *testing.T) {
	t.Parallel()

	b := NewBuilder(t.TempDir(), nil, []string{"AAA", "Colorectal Screen"})
	html, err := b.ProviderPage("Dr. A", "North Clinic", []string{"Dr. A", "Dr. B"}, []string{"North Clinic", "South Clinic"}, current)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if strings.Contains(html, "{{{") {
		t.Fatalf("unfilled placeholder left in page")
	}
	doc := parse(t, html)

	menus := doc.Find("div.uk-inline")
	if menus.Length() != 2 {
		t.Fatalf("menus=%d, want 2", menus.Length())
	}
	providerMenu := menus.Eq(0)
	if !providerMenu.Find(".uk-text-lead").HasClass("uk-text-bold") {
		t.Fatalf("provider title should be bold on a provider page")
	}
	if got := texts(providerMenu.Find("li.uk-active")); !reflect.DeepEqual(got, []string{"Dr. A"}) {
		t.Fatalf("active provider=%v", got)
	}
	if href, _ := providerMenu.Find("li a").Attr("href"); href != "../Dr._B/" {
		t.Fatalf("colleague href=%q", href)
	}
	if got := texts(menus.Eq(1).Find("li a")); !reflect.DeepEqual(got, []string{"North Clinic", "South Clinic"}) {
		t.Fatalf("clinic links=%v", got)
	}
	if !strings.Contains(doc.Text(), "02/01/2020") {
		t.Fatalf("current date missing")
	}

	var srcs []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		srcs = append(srcs, src)
	})
	if !reflect.DeepEqual(srcs, []string{"AAA.png", "Colorectal_Screen.png"}) {
		t.Fatalf("chart images=%v", srcs)
	}
}

func TestClinicPage_ActiveClinic(t *testing.T) {
	t.Parallel()

	b := NewBuilder(t.TempDir(), nil, nil)
	html, err := b.ClinicPage("South Clinic", []string{"Dr. C"}, []string{"North Clinic", "South Clinic"}, current)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	doc := parse(t, html)
	menus := doc.Find("div.uk-inline")

	if got := strings.TrimSpace(menus.Eq(0).Find(".uk-text-lead").Text()); got != "Providers" {
		t.Fatalf("provider menu title=%q", got)
	}
	if got := texts(menus.Eq(1).Find("li.uk-active")); !reflect.DeepEqual(got, []string{"South Clinic"}) {
		t.Fatalf("active clinic=%v", got)
	}
	if got := texts(menus.Eq(1).Find("li a")); !reflect.DeepEqual(got, []string{"North Clinic"}) {
		t.Fatalf("other clinics=%v", got)
	}
}

func TestRootIndex_CardsTaggedByClinic(t *testing.T) {
	t.Parallel()

	b := NewBuilder(t.TempDir(), nil, nil)
	html, err := b.RootIndex(
		[]string{"North Clinic", "South Clinic"},
		[]ProviderCard{{Name: "Dr. Zed", Clinic: "South Clinic"}, {Name: "Dr. Amy", Clinic: "North Clinic"}},
		current,
	)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	doc := parse(t, html)

	var controls []string
	doc.Find("[uk-filter-control]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("uk-filter-control")
		controls = append(controls, v)
	})
	if !reflect.DeepEqual(controls, []string{".tag-North_Clinic", ".tag-South_Clinic"}) {
		t.Fatalf("filter controls=%v", controls)
	}

	cards := doc.Find("ul.js-filter > li")
	if got := texts(cards); !reflect.DeepEqual(got, []string{"Dr. Zed", "Dr. Amy"}) {
		t.Fatalf("cards=%v", got)
	}
	if !cards.First().HasClass("tag-South_Clinic") {
		t.Fatalf("first card should be tagged with its clinic")
	}
}

func TestFragments_EscapeNames(t *testing.T) {
	t.Parallel()

	b := NewBuilder(t.TempDir(), nil, nil)
	html, err := b.RootIndex(nil, []ProviderCard{{Name: "<script>x</script>", Clinic: "A"}}, current)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if strings.Contains(html, "<script>x</script>") {
		t.Fatalf("display name was not escaped")
	}
}

func TestWritePages_CustomTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pagePath := filepath.Join(dir, "index.html")
	if err := os.WriteFile(pagePath, []byte("<p>{{{Current Date}}}</p>{{{Provider}}}{{{Clinic}}}"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	tpl, err := LoadTemplates(pagePath, filepath.Join(dir, "missing.html"))
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	if !strings.Contains(tpl.Base, SlotProviderCards) {
		t.Fatalf("missing base template should fall back to the built-in one")
	}

	out := filepath.Join(dir, "docs")
	b := NewBuilder(out, tpl, nil)
	path, err := b.WriteProviderPage("Dr. A", "North Clinic", []string{"Dr. A"}, []string{"North Clinic"}, current)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := filepath.Join(out, "Dr._A", "index.html"); path != want {
		t.Fatalf("path=%q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "<p>02/01/2020</p>") {
		t.Fatalf("page=%q", data)
	}

	if _, err := b.WriteRootIndex([]string{"North Clinic"}, nil, current); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "index.html")); err != nil {
		t.Fatalf("root index missing: %v", err)
	}
}
