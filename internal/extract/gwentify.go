package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// DefaultPagePattern 末页链接模板: (前缀)(页码)(后缀)
const DefaultPagePattern = `^(https?://.+/page/)([0-9]+)(/.*)?$`

// 200/800
var costRegex = regexp.MustCompile(`^([0-9]+)/([0-9]+)`)

const multiplePositions = "multiple"

// Gwentify gwentify风格卡牌目录的解析器
type Gwentify struct {
	pageRegex *regexp.Regexp
}

// NewGwentify 创建解析器,pattern为空时使用 DefaultPagePattern
// pattern 必须恰好有三个捕获组
func NewGwentify(pattern string) (*Gwentify, error) {
	if pattern == "" {
		pattern = DefaultPagePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("分页模板正则无效: %w", err)
	}
	if re.NumSubexp() != 3 {
		return nil, fmt.Errorf("分页模板必须有3个捕获组(前缀、页码、后缀),实际 %d 个", re.NumSubexp())
	}
	return &Gwentify{pageRegex: re}, nil
}

// EnumeratePages 实现 PageEnumerator 接口
func (g *Gwentify) EnumeratePages(rootURL string, body []byte) ([]string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	href, ok := doc.Find("li > a.last").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, &models.LayoutError{URL: rootURL, Element: "li > a.last"}
	}
	lastPage := resolveURL(rootURL, strings.TrimSpace(href))

	match := g.pageRegex.FindStringSubmatch(lastPage)
	if match == nil {
		return nil, &models.LayoutError{
			URL:     rootURL,
			Element: "分页链接",
			Detail:  fmt.Sprintf("%s 不匹配 %s", lastPage, g.pageRegex.String()),
		}
	}

	total, err := strconv.Atoi(match[2])
	if err != nil {
		return nil, &models.LayoutError{URL: rootURL, Element: "页码", Detail: match[2]}
	}

	pages := make([]string, 0, max(total, 1))
	pages = append(pages, rootURL)
	for i := 2; i <= total; i++ {
		pages = append(pages, match[1]+strconv.Itoa(i)+match[3])
	}

	log.Debug().Str("last_page", lastPage).Int("pages", len(pages)).Msg("分页解析完成")
	return pages, nil
}

// ExtractLinks 实现 LinkExtractor 接口
// 每行取第一个单元格中的第一个链接,没有链接的行(表头)跳过
func (g *Gwentify) ExtractLinks(pageURL string, body []byte) ([]string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, &models.LayoutError{URL: pageURL, Element: "table"}
	}

	var links []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("td").First().Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		links = append(links, resolveURL(pageURL, href))
	})
	return links, nil
}

// ExtractDetail 实现 DetailExtractor 接口
// 只有名称是必需的,其余字段缺失时使用默认值或省略
func (g *Gwentify) ExtractDetail(pageURL string, body []byte) (*models.Card, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	article := doc.Find("div#primary article").First()
	if article.Length() == 0 {
		return nil, &models.LayoutError{URL: pageURL, Element: "div#primary article"}
	}

	name := strings.TrimSpace(article.Find("h1").First().Text())
	if name == "" {
		return nil, &models.LayoutError{URL: pageURL, Element: "h1", Detail: "卡牌名称为空"}
	}

	card := models.NewCard(name)
	card.SourceURL = pageURL
	variation := &card.Variations[0]

	img := article.Find("div.card-img").First()
	if href, ok := img.Find("a[href]").First().Attr("href"); ok {
		variation.Art.FullsizeImage = resolveURL(pageURL, strings.TrimSpace(href))
	}
	if src, ok := img.Find("img[src]").First().Attr("src"); ok {
		variation.Art.ThumbnailImage = resolveURL(pageURL, strings.TrimSpace(src))
	}

	article.Find("ul.card-cats > li").Each(func(_ int, li *goquery.Selection) {
		label := strings.TrimSuffix(strings.TrimSpace(li.Find("strong").First().Text()), ":")

		switch label {
		case "Group":
			card.Type = firstLinkText(li)
		case "Rarity":
			variation.Rarity = firstLinkText(li)
		case "Faction":
			card.Faction = firstLinkText(li)
		case "Strength":
			value := labelValue(li)
			if n, err := strconv.Atoi(value); err == nil {
				card.Strength = n
			} else if value != "" {
				log.Debug().Str("url", pageURL).Str("value", value).Msg("无法解析战力")
			}
		case "Loyalty":
			card.Loyalty = linkTexts(li)
		case "Type":
			card.Categories = linkTexts(li)
		case "Craft":
			variation.Craft = parseCost(labelValue(li))
		case "Mill":
			variation.Mill = parseCost(labelValue(li))
		case "Position":
			card.Positions = parsePositions(li)
		}
	})

	var paragraphs []string
	article.Find("div.card-text p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	card.Info = strings.Join(paragraphs, " ")

	card.Flavor = strings.TrimSpace(article.Find("p.flavor").First().Text())

	marker := article.Find("ul.card-cats").First().NextAllFiltered("strong").First().Find("a").First()
	if strings.EqualFold(strings.TrimSpace(marker.Text()), "Uncollectible") {
		variation.Availability = models.AvailabilityUncollectible
	}

	return card, nil
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return doc, nil
}

// resolveURL 相对地址按页面地址解析,解析失败时原样返回
func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return r.String()
}

func firstLinkText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Find("a").First().Text())
}

func linkTexts(s *goquery.Selection) []string {
	texts := []string{}
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		if text := strings.TrimSpace(a.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// labelValue 返回 <strong>标签</strong> 之后的第一段非空文本
func labelValue(li *goquery.Selection) string {
	strong := li.Find("strong").First()
	if strong.Length() == 0 {
		return ""
	}
	for n := strong.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			return text
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.WriteString(nodeText(c))
		}
		return b.String()
	}
	return ""
}

// parseCost 解析 "N/M",不匹配时为 {-1,-1}
func parseCost(value string) models.CostPair {
	match := costRegex.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return models.UnknownCost()
	}
	normal, err1 := strconv.Atoi(match[1])
	premium, err2 := strconv.Atoi(match[2])
	if err1 != nil || err2 != nil {
		return models.UnknownCost()
	}
	return models.CostPair{Normal: normal, Premium: premium}
}

// parsePositions "Multiple" 展开为三个固定位置
func parsePositions(li *goquery.Selection) []string {
	value := firstLinkText(li)
	if value == "" {
		value = labelValue(li)
	}
	if strings.EqualFold(strings.Join(strings.Fields(value), ""), multiplePositions) {
		return append([]string(nil), models.AllPositions...)
	}
	if value == "" {
		return []string{}
	}
	return []string{value}
}
