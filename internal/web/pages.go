package web

const pageHead = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>emobot</title>
  <style>
    :root {
      --bg: #0b1224;
      --panel: rgba(15, 23, 42, 0.8);
      --line: rgba(148, 163, 184, 0.25);
      --text: #e2e8f0;
      --muted: #94a3b8;
      --accent: #22d3ee;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      min-height: 100vh;
      display: grid;
      grid-template-columns: 200px 1fr;
      font-family: "Avenir Next", "Segoe UI", sans-serif;
      background: var(--bg);
      color: var(--text);
    }
    nav { padding: 24px 16px; border-right: 1px solid var(--line); }
    nav h3 { margin: 0 0 16px; }
    nav a { display: block; padding: 8px 10px; margin-bottom: 6px; border-radius: 8px; color: var(--text); text-decoration: none; }
    nav a:hover { background: rgba(34, 211, 238, 0.15); }
    main { padding: 24px; }
    .panel { border: 1px solid var(--line); border-radius: 14px; background: var(--panel); padding: 16px; margin-bottom: 16px; }
    .muted { color: var(--muted); }
    button { padding: 10px 18px; border-radius: 10px; border: 1px solid var(--accent); background: transparent; color: var(--text); font-size: 15px; cursor: pointer; }
    button:hover { background: rgba(34, 211, 238, 0.2); }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid var(--line); }
    .bar { height: 22px; background: var(--accent); border-radius: 4px; }
    .row { display: grid; grid-template-columns: 110px 1fr 80px; gap: 10px; align-items: center; margin-bottom: 8px; }
    .cols { display: grid; grid-template-columns: repeat(3, 1fr); gap: 12px; max-width: 480px; }
    input[type=range] { width: 100%; }
    #frame { max-width: 100%; border-radius: 10px; background: #000; min-height: 240px; }
  </style>
</head>
<body>
  <nav>
    <h3>Navigation</h3>
    <a href="/">Emotion Detection</a>
    <a href="/stats">Statistics</a>
    <a href="/control">Robot Control</a>
  </nav>
  <main>
`

const pageTail = `
  </main>
</body>
</html>`

const emotionPageHTML = pageHead + `
    <h2>Real-time Emotion Detection</h2>
    <div class="panel">
      <label><input type="checkbox" id="run" /> Start Webcam</label>
      <p class="muted" id="status">idle</p>
      <p>Current Emotion: <strong id="emotion">-</strong></p>
    </div>
    <div class="panel"><img id="frame" alt="" /></div>
    <script>
      const run = document.getElementById('run');
      const statusEl = document.getElementById('status');
      const emotionEl = document.getElementById('emotion');
      const frame = document.getElementById('frame');
      let running = false;

      function render(state) {
        running = state.state === 'running';
        run.checked = running;
        statusEl.textContent = state.last_error ? state.state + ' (' + state.last_error + ')' : state.state;
        if (state.latest_emotion) emotionEl.textContent = state.latest_emotion.emotion;
      }

      async function refreshState() {
        const resp = await fetch('/api/state');
        render(await resp.json());
      }

      run.addEventListener('change', async () => {
        const resp = await fetch('/api/session/toggle', { method: 'POST' });
        const body = await resp.json();
        if (body.error) statusEl.textContent = body.error;
        refreshState();
      });

      setInterval(() => {
        if (running) frame.src = '/api/frame.jpg?ts=' + Date.now();
      }, 200);

      const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
      ws.onmessage = (msg) => {
        const ev = JSON.parse(msg.data);
        if (ev.type === 'sample') emotionEl.textContent = ev.sample.emotion;
        if (ev.type === 'state') refreshState();
      };
      refreshState();
    </script>
` + pageTail

const statsPageHTML = pageHead + `
    <h2>Emotion Statistics</h2>
    <div class="panel" id="chart"></div>
    <div class="panel">
      <p>Detailed Data:</p>
      <table>
        <thead><tr><th>emotion</th><th>duration (s)</th></tr></thead>
        <tbody id="table"></tbody>
      </table>
    </div>
    <script>
      async function load() {
        const resp = await fetch('/api/stats');
        const body = await resp.json();
        const chart = document.getElementById('chart');
        const table = document.getElementById('table');
        chart.innerHTML = '';
        table.innerHTML = '';
        if (!body.sample_count) {
          chart.textContent = 'No data collected yet';
          return;
        }
        const max = Math.max(...body.rows.map(r => r.seconds), 0.001);
        for (const row of body.rows) {
          const line = document.createElement('div');
          line.className = 'row';
          line.innerHTML = '<span></span><div class="bar"></div><span></span>';
          line.children[0].textContent = row.emotion;
          line.children[1].style.width = (100 * row.seconds / max) + '%';
          line.children[2].textContent = row.seconds.toFixed(1) + 's';
          chart.appendChild(line);

          const tr = document.createElement('tr');
          tr.innerHTML = '<td></td><td></td>';
          tr.children[0].textContent = row.emotion;
          tr.children[1].textContent = row.seconds.toFixed(3);
          table.appendChild(tr);
        }
      }
      load();
      setInterval(load, 2000);
    </script>
` + pageTail

const controlPageHTML = pageHead + `
    <h2>Robot Control</h2>
    <div class="panel cols">
      <button data-cmd="forward">Forward</button>
      <button data-cmd="stop">Stop</button>
      <button data-cmd="backward">Backward</button>
    </div>
    <div class="panel" style="max-width: 480px">
      <h3>Pan-Tilt Control</h3>
      <label>Pan <span id="panValue">0</span></label>
      <input type="range" id="pan" min="-90" max="90" value="0" />
      <label>Tilt <span id="tiltValue">0</span></label>
      <input type="range" id="tilt" min="-45" max="45" value="0" />
    </div>
    <script>
      for (const btn of document.querySelectorAll('button[data-cmd]')) {
        btn.addEventListener('click', () => {
          fetch('/api/robot/command', {
            method: 'POST',
            headers: { 'content-type': 'application/json' },
            body: JSON.stringify({ cmd: btn.dataset.cmd }),
          });
        });
      }

      const pan = document.getElementById('pan');
      const tilt = document.getElementById('tilt');
      let inflight = false;
      let pending = false;
      function sendPanTilt() {
        document.getElementById('panValue').textContent = pan.value;
        document.getElementById('tiltValue').textContent = tilt.value;
        if (inflight) {
          pending = true;
          return;
        }
        inflight = true;
        fetch('/api/robot/pantilt', {
          method: 'POST',
          headers: { 'content-type': 'application/json' },
          body: JSON.stringify({ pan: Number(pan.value), tilt: Number(tilt.value) }),
        }).finally(() => {
          inflight = false;
          if (pending) {
            pending = false;
            sendPanTilt();
          }
        });
      }
      pan.addEventListener('input', sendPanTilt);
      tilt.addEventListener('input', sendPanTilt);
      sendPanTilt();
    </script>
` + pageTail
