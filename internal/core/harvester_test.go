package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/arachas/internal/crawlers"
	"github.com/RecoveryAshes/arachas/internal/models"
)

// catalogSite 模拟一个两页的卡牌目录
type catalogSite struct {
	pages   map[int][]string  // 页码 -> 详情页路径
	names   map[string]string // 详情页路径 -> 卡牌名称
	broken  map[string]bool   // 返回500的详情页
	lastRef string            // 末页链接,为空时按页数生成
}

func newCatalogSite() *catalogSite {
	return &catalogSite{
		pages: map[int][]string{
			1: {"/cards/geralt/", "/cards/yennefer/"},
			2: {"/cards/ciri/", "/cards/broken/"},
		},
		names: map[string]string{
			"/cards/geralt/":   "Geralt",
			"/cards/yennefer/": "Yennefer",
			"/cards/ciri/":     "Ciri",
			"/cards/broken/":   "Broken",
		},
		broken: map[string]bool{"/cards/broken/": true},
	}
}

func (s *catalogSite) listing(w http.ResponseWriter, serverURL string, page int) {
	var b strings.Builder
	b.WriteString("<html><body><table><tr><th>Name</th></tr>")
	for _, path := range s.pages[page] {
		fmt.Fprintf(&b, `<tr><td><a href="%s">%s</a></td></tr>`, path, s.names[path])
	}
	b.WriteString("</table>")
	last := s.lastRef
	if last == "" {
		last = fmt.Sprintf("%s/cards/page/%d/?view=table", serverURL, len(s.pages))
	}
	fmt.Fprintf(&b, `<ul><li><a class="last" href="%s">Last</a></li></ul></body></html>`, last)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(b.String()))
}

func (s *catalogSite) handler(serverURL *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case path == "/cards/":
			s.listing(w, *serverURL, 1)
		case strings.HasPrefix(path, "/cards/page/"):
			var n int
			fmt.Sscanf(strings.TrimPrefix(path, "/cards/page/"), "%d", &n)
			if _, ok := s.pages[n]; !ok {
				http.NotFound(w, r)
				return
			}
			s.listing(w, *serverURL, n)
		case strings.HasPrefix(path, "/media/"):
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("PNG:" + path))
		default:
			if s.broken[path] {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			name, ok := s.names[path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			slug := strings.Trim(strings.TrimPrefix(path, "/cards/"), "/")
			fmt.Fprintf(w, `<html><body><div id="primary"><article>
<h1>%s</h1>
<div class="card-img"><a href="/media/%s.png"><img src="/media/%s-thumb.png"></a></div>
<ul class="card-cats"><li><strong>Craft:</strong> 200/800</li></ul>
</article></div></body></html>`, name, slug, slug)
		}
	})
}

func startCatalog(t *testing.T, site *catalogSite) *httptest.Server {
	t.Helper()
	var serverURL string
	server := httptest.NewServer(site.handler(&serverURL))
	serverURL = server.URL
	t.Cleanup(server.Close)
	return server
}

func testHarvestConfig(rootURL string) models.HarvestConfig {
	return models.HarvestConfig{
		RootURL: rootURL,
		Workers: 3,
		Timeout: 2 * time.Second,
		Mode:    models.ModeStatic,
	}
}

var testHeaders = models.StaticHeaders{"User-Agent": {DefaultUserAgent}}

func TestHarvester_Harvest(t *testing.T) {
	server := startCatalog(t, newCatalogSite())

	config := testHarvestConfig(server.URL + "/cards/")
	config.DownloadAssets = true
	config.AssetDir = filepath.Join(t.TempDir(), "media")

	policy := crawlers.NewDropPolicy()
	h, err := NewHarvester(config, testHeaders, WithFailurePolicy(policy))
	if err != nil {
		t.Fatalf("NewHarvester() error = %v", err)
	}
	defer h.Close()

	result, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	var names []string
	for _, c := range result.Cards {
		names = append(names, c.Name)
	}
	if want := []string{"Ciri", "Geralt", "Yennefer"}; !reflect.DeepEqual(names, want) {
		t.Errorf("卡牌 = %v, want %v", names, want)
	}
	if want := []string{"ciri", "geralt", "yennefer"}; !reflect.DeepEqual(result.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", result.Keys(), want)
	}
	if c := result.Cards[0]; c.Variations[0].Craft != (models.CostPair{Normal: 200, Premium: 800}) {
		t.Errorf("Craft = %+v", c.Variations[0].Craft)
	}

	stats := result.Stats
	if stats.Pages.Processed != 2 || stats.Pages.Dropped != 0 {
		t.Errorf("Pages = %+v", stats.Pages)
	}
	if stats.Details.Processed != 4 || stats.Details.Dropped != 1 {
		t.Errorf("Details = %+v", stats.Details)
	}
	if stats.Assets.Processed != 3 || stats.Assets.Dropped != 0 {
		t.Errorf("Assets = %+v", stats.Assets)
	}
	if stats.Cards != 3 || stats.RunID != h.RunID() {
		t.Errorf("Stats = %+v", stats)
	}
	if policy.Dropped(crawlers.StageDetail) != 1 {
		t.Errorf("详情页丢弃数 = %d, want 1", policy.Dropped(crawlers.StageDetail))
	}

	for _, key := range []string{"ciri", "geralt", "yennefer"} {
		data, err := os.ReadFile(filepath.Join(config.AssetDir, key+".png"))
		if err != nil {
			t.Errorf("卡图 %s 未保存: %v", key, err)
			continue
		}
		if string(data) != "PNG:/media/"+key+".png" {
			t.Errorf("卡图 %s 内容 = %q", key, data)
		}
	}
}

func TestHarvester_AssetsDisabled(t *testing.T) {
	server := startCatalog(t, newCatalogSite())

	h, err := NewHarvester(testHarvestConfig(server.URL+"/cards/"), testHeaders)
	if err != nil {
		t.Fatalf("NewHarvester() error = %v", err)
	}
	result, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if result.Stats.Assets.Processed != 0 {
		t.Errorf("未启用卡图下载时不应处理卡图: %+v", result.Stats.Assets)
	}
}

func TestHarvester_RootFailures(t *testing.T) {
	site := newCatalogSite()
	site.lastRef = "http://elsewhere/cards?p=2"
	server := startCatalog(t, site)

	tests := []struct {
		name    string
		rootURL string
		check   func(error) bool
	}{
		{
			name:    "入口页404",
			rootURL: server.URL + "/missing/",
			check: func(err error) bool {
				var fe *crawlers.FetchError
				return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
			},
		},
		{
			name:    "分页链接不匹配",
			rootURL: server.URL + "/cards/",
			check: func(err error) bool {
				var le *models.LayoutError
				return errors.As(err, &le)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHarvester(testHarvestConfig(tt.rootURL), testHeaders)
			if err != nil {
				t.Fatalf("NewHarvester() error = %v", err)
			}
			_, err = h.Harvest(context.Background())
			if err == nil || !tt.check(err) {
				t.Errorf("Harvest() error = %v", err)
			}
		})
	}
}

func TestHarvester_CollisionReject(t *testing.T) {
	site := newCatalogSite()
	site.pages = map[int][]string{1: {"/cards/geralt/", "/cards/geralt-2/"}}
	site.names["/cards/geralt-2/"] = "GERALT"
	server := startCatalog(t, site)

	h, err := NewHarvester(testHarvestConfig(server.URL+"/cards/"), testHeaders, WithCollisionPolicy(CollisionReject))
	if err != nil {
		t.Fatalf("NewHarvester() error = %v", err)
	}
	if _, err := h.Harvest(context.Background()); !errors.Is(err, ErrKeyCollision) {
		t.Errorf("Harvest() error = %v, want ErrKeyCollision", err)
	}
}

func TestHarvester_Cancelled(t *testing.T) {
	server := startCatalog(t, newCatalogSite())

	h, err := NewHarvester(testHarvestConfig(server.URL+"/cards/"), testHeaders)
	if err != nil {
		t.Fatalf("NewHarvester() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Harvest(ctx); err == nil {
		t.Error("已取消的ctx应返回错误")
	}
}

func TestNewHarvester_InvalidConfig(t *testing.T) {
	config := testHarvestConfig("not a url")
	if _, err := NewHarvester(config, testHeaders); err == nil {
		t.Error("无效配置应返回错误")
	}
}
