package scraper

import (
	"github.com/ysmood/gson"

	"github.com/use-agent/sitelens/models"
)

// uiElementsJS walks the rendered DOM once and gathers fonts, colors,
// hyperlinks, button-sized clickables, canvases, and form controls. The
// slice limits keep pathological pages from flooding the inventory.
const uiElementsJS = `() => {
	const fonts = new Set();
	const colors = new Set();
	const links = [];
	const buttons = [];
	const canvases = [];
	const controls = [];
	const components = [];

	const push = (s) => {
		const f = s.fontFamily || s.font || "";
		if (f) fonts.add(f);
		["color", "backgroundColor", "borderTopColor", "borderColor"].forEach(k => {
			const v = s[k];
			if (v && v.startsWith("rgb")) colors.add(v);
		});
	};

	document.querySelectorAll("*").forEach(el => {
		const s = getComputedStyle(el);

		if (el.tagName === "A") {
			links.push({text: el.textContent.trim(), href: el.href});
		}

		if (el.tagName === "BUTTON" || el.getAttribute("role") === "button" || s.cursor === "pointer") {
			const rect = el.getBoundingClientRect();
			if (rect.width >= 60 && rect.height >= 28) {
				buttons.push({
					text: el.textContent.trim(),
					w: rect.width,
					h: rect.height,
					classes: String(el.className)
				});
			}
		}

		if (el.tagName === "CANVAS") {
			const rect = el.getBoundingClientRect();
			canvases.push({w: Math.round(rect.width), h: Math.round(rect.height)});
		}

		if (el.matches("input, select, textarea") || el.getAttribute("role") === "slider") {
			const type = el.getAttribute("type") || el.tagName.toLowerCase();
			const rect = el.getBoundingClientRect();
			controls.push({
				type,
				w: Math.round(rect.width),
				h: Math.round(rect.height),
				classes: String(el.className)
			});
		}

		push(s);
	});

	return {
		fonts: Array.from(fonts).slice(0, 200),
		colors: Array.from(colors).slice(0, 200),
		links: links.slice(0, 200),
		buttons: buttons.slice(0, 100),
		canvases,
		controls,
		components
	};
}`

// cssVariablesJS collects custom properties from the root inline style and
// every reachable stylesheet rule. Cross-origin sheets throw on cssRules
// access and are skipped.
const cssVariablesJS = `() => {
	const vars = {};
	const collect = (style) => {
		if (!style) return;
		for (let i = 0; i < style.length; i++) {
			const prop = style[i];
			if (prop.startsWith("--")) {
				vars[prop] = style.getPropertyValue(prop).trim();
			}
		}
	};

	collect(document.documentElement.style);
	for (const sheet of Array.from(document.styleSheets)) {
		try {
			const rules = sheet.cssRules || [];
			for (const rule of Array.from(rules)) {
				if (rule.style) collect(rule.style);
			}
		} catch (e) {}
	}
	return vars;
}`

const pageMetaJS = `() => ({
	title: document.title,
	description: document.querySelector('meta[name="description"]')?.content || '',
	keywords: document.querySelector('meta[name="keywords"]')?.content || '',
	viewport: document.querySelector('meta[name="viewport"]')?.content || '',
	language: document.documentElement.lang || 'en'
})`

// CollectPageData runs the extraction scripts against a rendered page and
// decodes the results. The scripts are best-effort individually, but a
// failure of the main element walk fails the whole extraction.
func CollectPageData(p Page, url string) (*models.PageData, error) {
	ui, err := p.Eval(uiElementsJS)
	if err != nil {
		return nil, err
	}

	data := &models.PageData{
		URL:          url,
		Fonts:        gsonStrings(ui.Get("fonts")),
		Colors:       gsonStrings(ui.Get("colors")),
		CSSVariables: map[string]string{},
	}

	for _, l := range ui.Get("links").Arr() {
		data.Links = append(data.Links, models.Link{
			Text: l.Get("text").Str(),
			Href: l.Get("href").Str(),
		})
	}
	for _, b := range ui.Get("buttons").Arr() {
		data.Buttons = append(data.Buttons, models.Button{
			Text:    b.Get("text").Str(),
			W:       b.Get("w").Num(),
			H:       b.Get("h").Num(),
			Classes: b.Get("classes").Str(),
		})
	}
	for _, c := range ui.Get("canvases").Arr() {
		data.Canvases = append(data.Canvases, models.Canvas{
			W: c.Get("w").Int(),
			H: c.Get("h").Int(),
		})
	}
	for _, c := range ui.Get("controls").Arr() {
		data.Controls = append(data.Controls, models.Control{
			Type:    c.Get("type").Str(),
			W:       c.Get("w").Int(),
			H:       c.Get("h").Int(),
			Classes: c.Get("classes").Str(),
		})
	}
	for _, c := range ui.Get("components").Arr() {
		data.Components = append(data.Components, models.Component{
			Type:    c.Get("type").Str(),
			Classes: c.Get("classes").Str(),
		})
	}

	// CSS variables and metadata are optional: a script failure here
	// degrades the record instead of failing the page.
	if vars, varsErr := p.Eval(cssVariablesJS); varsErr == nil {
		for k, v := range vars.Map() {
			data.CSSVariables[k] = v.Str()
		}
	}
	if meta, metaErr := p.Eval(pageMetaJS); metaErr == nil {
		data.Meta = models.PageMeta{
			Title:       meta.Get("title").Str(),
			Description: meta.Get("description").Str(),
			Keywords:    meta.Get("keywords").Str(),
			Viewport:    meta.Get("viewport").Str(),
			Language:    meta.Get("language").Str(),
		}
	}

	if html, htmlErr := p.HTML(); htmlErr == nil {
		data.HTML = html
	}

	return data, nil
}

func gsonStrings(j gson.JSON) []string {
	arr := j.Arr()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Str())
	}
	return out
}
