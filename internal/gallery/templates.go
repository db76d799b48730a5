package gallery

import "html/template"

const cardTemplate = `{{define "card"}}
<div class="card{{if .Touch}} touch{{end}}" data-card data-autoplay="{{.Autoplay}}" data-playing="{{.Playing}}"{{if .MinWidth}} data-min-width="{{.MinWidth}}"{{end}}>
    <video muted loop playsinline preload="auto" poster="{{.PosterURL}}"{{if .Autoplay}} autoplay{{end}}>
        {{range .Sources}}<source src="{{.URL}}" type="{{.Type}}">{{end}}
    </video>
    {{if and .Touch (not .Autoplay)}}<span class="hint">tap to play</span>{{end}}
    {{if .DetailURL}}<a class="detail-button" data-detail href="{{.DetailURL}}">show detail</a>{{end}}
</div>
{{end}}`

// cardScript mirrors playback.Controller: hover plays, leaving pauses, a
// click toggles, and autoplay cards ignore all three. A refused play() leaves
// playing unchanged as Controller.PointerEnter and Activate do; the page
// drops the rejection where Controller keeps it in Err. Keep the two in step.
const cardScript = `{{define "card-script"}}
<script nonce="{{.}}">
document.querySelectorAll('[data-card]').forEach(function (card) {
    var video = card.querySelector('video');
    var autoplay = card.dataset.autoplay === 'true';
    var playing = card.dataset.playing === 'true';
    var hovering = false;
    if (!video || autoplay) { return; }
    function play() {
        var p = video.play();
        if (p && p.then) { return p.then(function () { playing = true; }, function () {}); }
        playing = true;
    }
    function pause() { video.pause(); playing = false; }
    card.addEventListener('mouseenter', function () { hovering = true; play(); });
    card.addEventListener('mouseleave', function () { hovering = false; pause(); });
    card.addEventListener('click', function (e) {
        if (e.target.closest('[data-detail]')) { return; }
        if (playing && !hovering) { pause(); } else { play(); }
    });
});
</script>
{{end}}`

const baseStyle = `{{define "style"}}
<style nonce="{{.}}">
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { background: #1b1b1b; color: #fff; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; }
    main { display: flex; flex-direction: column; align-items: center; padding: 24px 12px; }
    h1 { font-size: 1.6em; margin-bottom: 1em; text-align: center; }
    h5 { text-align: center; margin-bottom: 1em; }
    .card { position: relative; min-width: 250px; max-width: 360px; cursor: pointer; }
    .card video { display: block; width: 100%; }
    .card .hint { position: absolute; left: 8px; bottom: 8px; font-size: 12px; opacity: 0.8; }
    .card .detail-button { position: absolute; right: 8px; bottom: 8px; color: #fff; background: rgba(0,0,0,0.5); padding: 4px 8px; text-decoration: none; font-size: 12px; }
    .social { display: flex; justify-content: space-around; align-items: center; margin-top: 17px; min-width: 250px; }
    .social button { background: none; border: none; color: #fff; cursor: pointer; font-size: 1em; }
    .social button.checked { color: #e0245e; }
    .social a { color: #fff; text-decoration: none; }
</style>
{{end}}`

const detailPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Meta.Title}}</title>
    {{range .Meta.Tags}}<meta{{if .Name}} name="{{.Name}}"{{end}}{{if .Property}} property="{{.Property}}"{{end}} content="{{.Content}}">
    {{end}}
    {{template "style" .Nonce}}
</head>
<body>
<main>
    <h1>{{.Detail.Name}}</h1>
    <h5>by @{{.Detail.Username}}</h5>
    {{template "card" .Card}}
    <div class="social">
        <span title="comments">&#128172; {{len .Detail.Comments}}</span>
        <span title="views">&#128065; {{.Detail.NumberOfView}}</span>
        <button type="button" data-like="{{.Detail.ID}}"{{if .Detail.Checked}} class="checked"{{end}} title="like">&#9829; <span data-like-count>{{.Detail.Like}}</span></button>
        {{if .Detail.GithubLink}}<a href="{{.Detail.GithubLink}}" rel="noopener" target="_blank" title="GitHub stars">&#9733; {{.Detail.Stars}}</a>{{end}}
    </div>
</main>
{{template "card-script" .Nonce}}
<script nonce="{{.Nonce}}">
(function () {
    var button = document.querySelector('[data-like]');
    if (!button) { return; }
    var count = button.querySelector('[data-like-count]');
    button.addEventListener('click', function () {
        fetch('/api/gifs/' + encodeURIComponent(button.dataset.like) + '/like', {
            method: 'POST',
            credentials: 'same-origin'
        }).then(function (res) {
            return res.json().then(function (body) { return { status: res.status, body: body }; });
        }).then(function (r) {
            if (r.body.redirect) { window.location.href = r.body.redirect; return; }
            if (r.status !== 200) { return; }
            var n = parseInt(count.textContent, 10) || 0;
            count.textContent = r.body.liked ? n + 1 : Math.max(0, n - 1);
            button.classList.toggle('checked', r.body.liked);
        });
    });
})();
</script>
</body>
</html>`

const playerPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    {{template "style" .Nonce}}
</head>
<body>
{{template "card" .Card}}
{{template "card-script" .Nonce}}
</body>
</html>`

const statusPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    {{template "style" .Nonce}}
</head>
<body>
<main>
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
</main>
</body>
</html>`

func pageTemplate(name, body string) *template.Template {
	t := template.New(name)
	template.Must(t.Parse(cardTemplate))
	template.Must(t.Parse(cardScript))
	template.Must(t.Parse(baseStyle))
	return template.Must(t.Parse(body))
}

var (
	detailTemplate = pageTemplate("detail", detailPage)
	playerTemplate = pageTemplate("player", playerPage)
	statusTemplate = pageTemplate("status", statusPage)
)
