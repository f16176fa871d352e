package server

import (
	"fmt"
	"net/http"
)

// handleIndex renders the viewer page. The page draws /api/frame.svg whenever a
// frame event arrives and forwards pointer input to the controller.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>echoview</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; background: #f5f5f5; color: #333; }
    header { display: flex; gap: 12px; align-items: center; padding: 8px 16px; background: white; border-bottom: 1px solid #eee; }
    #canvas { width: 800px; height: 600px; margin: 16px; background: white; box-shadow: 0 2px 10px rgba(0,0,0,0.1); user-select: none; }
    #tooltip { position: absolute; display: none; background: #222; color: white; padding: 4px 8px; border-radius: 4px; font-size: 12px; pointer-events: none; }
    .btn { background: #4285f4; color: white; border: none; padding: 6px 12px; border-radius: 4px; cursor: pointer; }
    #status { font-size: 13px; color: #666; }
  </style>
</head>
<body>
  <header>
    <strong>echoview</strong>
    <select id="graphs"></select>
    <button class="btn" id="retry">Retry</button>
    <button class="btn" id="fit">Fit</button>
    <button class="btn" id="reset">Reset view</button>
    <span id="status">idle</span>
  </header>
  <div id="canvas"></div>
  <div id="tooltip"></div>
<script>
const canvas = document.getElementById('canvas');
const tooltip = document.getElementById('tooltip');
const post = (path, body) => fetch(path, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})}).then(r => r.ok ? r.json().catch(() => null) : null);

let pending = false;
function redraw() {
  if (pending) return;
  pending = true;
  requestAnimationFrame(() => fetch('/api/frame.svg').then(r => r.text()).then(svg => { canvas.innerHTML = svg; pending = false; }));
}

function point(e) {
  const b = canvas.getBoundingClientRect();
  return {x: e.clientX - b.left, y: e.clientY - b.top};
}

canvas.addEventListener('pointerdown', e => { canvas.setPointerCapture(e.pointerId); post('/api/pointer/down', point(e)).then(redraw); });
canvas.addEventListener('pointerup', e => post('/api/pointer/up', point(e)).then(redraw));
canvas.addEventListener('pointercancel', () => post('/api/pointer/cancel').then(redraw));
canvas.addEventListener('pointermove', e => {
  const p = point(e);
  post('/api/pointer/move', p).then(st => {
    redraw();
    if (!st || !st.hovered) { tooltip.style.display = 'none'; return; }
    tooltip.textContent = st.hovered;
    tooltip.style.display = 'block';
    const q = new URLSearchParams({x: p.x, y: p.y, w: tooltip.offsetWidth, h: tooltip.offsetHeight});
    fetch('/api/tooltip?' + q).then(r => r.json()).then(pos => {
      const b = canvas.getBoundingClientRect();
      tooltip.style.left = (b.left + window.scrollX + pos.x) + 'px';
      tooltip.style.top = (b.top + window.scrollY + pos.y) + 'px';
    });
  });
});
canvas.addEventListener('wheel', e => { e.preventDefault(); const p = point(e); post('/api/wheel', {x: p.x, y: p.y, deltaY: e.deltaY}).then(redraw); }, {passive: false});

document.getElementById('fit').onclick = () => post('/api/view/fit', {padding: 40}).then(redraw);
document.getElementById('reset').onclick = () => post('/api/view/reset').then(redraw);
document.getElementById('retry').onclick = () => post('/api/loader/retry');

const select = document.getElementById('graphs');
fetch('/api/graphs').then(r => r.json()).then(graphs => {
  select.innerHTML = '<option value="">select a graph</option>' + graphs.map(g => '<option value="' + g.GUID + '">' + (g.Name || g.GUID) + '</option>').join('');
});
select.onchange = () => { if (select.value) post('/api/graphs/' + encodeURIComponent(select.value) + '/load'); };

new EventSource('/api/subscribe/frame').addEventListener('frame', redraw);
new EventSource('/api/subscribe/status').addEventListener('status', e => {
  const st = JSON.parse(e.data).data;
  document.getElementById('status').textContent = st.state + ' · ' + st.nodesLoaded + ' nodes · ' + st.edgesLoaded + ' edges' + (st.error ? ' · ' + st.error : '');
});
new EventSource('/api/subscribe/selection').addEventListener('selection', e => {
  const sel = JSON.parse(e.data).data;
  document.getElementById('status').textContent = 'selected ' + sel.kind + ' ' + sel.id;
});
redraw();
</script>
</body>
</html>
`
