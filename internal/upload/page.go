package upload

import "html/template"

var pageTemplate = template.Must(template.New("upload").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Upload a component</title>
    <style nonce="{{.Nonce}}">
        body { font-family: system-ui, sans-serif; margin: 0; padding: 2rem; background: #fafafa; color: #222; }
        main { max-width: 420px; margin: 0 auto; text-align: center; }
        .preview { margin: 1rem auto; max-width: 320px; min-height: 120px; }
        .preview img, .preview video { max-width: 100%; border-radius: 6px; }
        .ring { display: none; margin: 1rem auto; }
        .ring circle { fill: none; stroke-width: 8; }
        .ring .track { stroke: #e5e5e5; }
        .ring .bar { stroke: #61dafb; stroke-linecap: round; transform: rotate(-90deg); transform-origin: 50% 50%; transition: stroke-dashoffset 0.3s; }
        .ring text { font-size: 20px; fill: #222; }
        .label { min-height: 1.5em; color: #555; }
        .error { color: #c0392b; }
        button { padding: 0.6rem 1.4rem; border: 0; border-radius: 4px; background: #20232a; color: #61dafb; cursor: pointer; }
        button:disabled { opacity: 0.5; cursor: default; }
    </style>
</head>
<body>
<main>
    <h1>Upload a component</h1>
    <input type="file" id="file" accept="{{.Accept}}" data-max-bytes="{{.MaxBytes}}">
    <div class="preview" id="preview"></div>
    <svg class="ring" id="ring" width="120" height="120" viewBox="0 0 120 120">
        <circle class="track" cx="60" cy="60" r="52"></circle>
        <circle class="bar" id="bar" cx="60" cy="60" r="52"></circle>
        <text id="percent" x="60" y="67" text-anchor="middle">0%</text>
    </svg>
    <p class="label" id="label"></p>
    <button type="button" id="submit" disabled>Upload it</button>
</main>
<script nonce="{{.Nonce}}">
(function() {
    var input = document.getElementById('file');
    var preview = document.getElementById('preview');
    var ring = document.getElementById('ring');
    var bar = document.getElementById('bar');
    var percentText = document.getElementById('percent');
    var label = document.getElementById('label');
    var submit = document.getElementById('submit');
    var maxBytes = parseInt(input.getAttribute('data-max-bytes'), 10);
    var circumference = 2 * Math.PI * 52;
    var uploadId = null;
    var active = false;
    var timer = null;
    var objectURL = null;

    bar.style.strokeDasharray = circumference;
    bar.style.strokeDashoffset = circumference;

    function setPercent(p) {
        bar.style.strokeDashoffset = circumference * (1 - p / 100);
        percentText.textContent = p + '%';
    }

    function setLabel(text, isError) {
        label.textContent = text || '';
        label.className = isError ? 'label error' : 'label';
    }

    input.addEventListener('change', function() {
        var file = input.files[0];
        preview.innerHTML = '';
        if (objectURL) { URL.revokeObjectURL(objectURL); objectURL = null; }
        submit.disabled = !file || active;
        setLabel('');
        if (!file) { return; }
        if (file.size > maxBytes) {
            setLabel('File is too large.', true);
            submit.disabled = true;
            return;
        }
        objectURL = URL.createObjectURL(file);
        var el;
        if (file.type === 'image/gif') {
            el = document.createElement('img');
        } else {
            el = document.createElement('video');
            el.muted = true;
            el.loop = true;
            el.autoplay = true;
            el.setAttribute('playsinline', '');
        }
        el.src = objectURL;
        preview.appendChild(el);
    });

    function stop() {
        active = false;
        if (timer) { clearTimeout(timer); timer = null; }
    }

    function poll() {
        fetch('/api/uploads/' + uploadId, { credentials: 'same-origin' })
            .then(function(r) { return r.json().then(function(body) { return { ok: r.ok, body: body }; }); })
            .then(function(res) {
                if (!res.ok) { throw new Error(res.body.error || 'Upload not found.'); }
                var s = res.body;
                setPercent(s.percent || 0);
                setLabel(s.label || s.phase);
                if (s.phase === 'complete') {
                    stop();
                    window.location.href = s.redirect || '/';
                    return;
                }
                if (s.phase === 'error') {
                    stop();
                    setLabel(s.error || 'Upload failed.', true);
                    submit.disabled = false;
                    return;
                }
                timer = setTimeout(poll, 1000);
            })
            .catch(function(err) {
                stop();
                setLabel(err.message, true);
                submit.disabled = false;
            });
    }

    submit.addEventListener('click', function() {
        var file = input.files[0];
        if (!file || active) { return; }
        active = true;
        submit.disabled = true;
        ring.style.display = 'block';
        setPercent(0);
        setLabel('uploading');
        var form = new FormData();
        form.append('file', file);
        fetch('/api/uploads', { method: 'POST', body: form, credentials: 'same-origin' })
            .then(function(r) { return r.json().then(function(body) { return { status: r.status, body: body }; }); })
            .then(function(res) {
                if (res.status === 401 && res.body.redirect) {
                    window.location.href = res.body.redirect;
                    return;
                }
                if (res.status !== 202) { throw new Error(res.body.error || 'Upload failed.'); }
                uploadId = res.body.id;
                poll();
            })
            .catch(function(err) {
                stop();
                setLabel(err.message, true);
                submit.disabled = false;
            });
    });

    window.addEventListener('pagehide', function() {
        if (active && uploadId) {
            fetch('/api/uploads/' + uploadId, { method: 'DELETE', credentials: 'same-origin', keepalive: true });
        }
        stop();
    });
})();
</script>
</body>
</html>
`))
