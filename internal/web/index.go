package web

// Single-page dashboard: portfolio summary with an equity chart fed over
// SSE, positions, watchlist, a trade form and the trade log.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Paperdesk</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --bg:#ffffff; --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0; padding:2rem; background:var(--bg); color:var(--ink);
      font-family:'Space Mono',monospace; display:flex; justify-content:center;
    }
    #app {
      width:min(1200px,96vw); background:var(--panel); border:3px solid var(--ink);
      padding:2rem; box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:flex; flex-direction:column; gap:1.5rem;
    }
    header { display:flex; justify-content:space-between; align-items:center; gap:1rem; }
    h1 { font-size:1rem; text-transform:uppercase; letter-spacing:.2em; margin:0; }
    .status {
      font-size:.65rem; text-transform:uppercase; letter-spacing:.1em;
      border:2px solid var(--ink); padding:.4rem .9rem; background:#fff;
    }
    .status.closed { color:#d7263d; border-color:#d7263d; }
    .cards { display:grid; grid-template-columns:repeat(auto-fit,minmax(180px,1fr)); gap:1rem; }
    .card { border:2px solid var(--ink); background:#fff; padding:1rem; }
    .card .label { font-size:.6rem; text-transform:uppercase; letter-spacing:.15em; color:var(--ink-mid); }
    .card .value { margin-top:.5rem; font-size:1.3rem; font-weight:700; }
    .value.up { color:#1b9aaa; } .value.down { color:#d7263d; }
    canvas { width:100%; border:2px solid var(--ink); background:#fff; }
    table { width:100%; border-collapse:collapse; background:#fff; border:2px solid var(--ink); font-size:.75rem; }
    th, td { padding:.5rem .7rem; border-bottom:1px solid rgba(0,0,0,.1); text-align:right; }
    th:first-child, td:first-child { text-align:left; }
    th { font-size:.6rem; text-transform:uppercase; letter-spacing:.12em; color:var(--ink-mid); }
    h2 { font-size:.7rem; text-transform:uppercase; letter-spacing:.15em; margin:0 0 .6rem; }
    form { display:flex; flex-wrap:wrap; gap:.6rem; align-items:center; }
    input, select, button {
      font-family:inherit; font-size:.75rem; padding:.45rem .7rem;
      border:2px solid var(--ink); background:#fff;
    }
    button { cursor:pointer; font-weight:700; text-transform:uppercase; letter-spacing:.1em; }
    button:hover { background:var(--ink); color:#fff; }
    #message { font-size:.7rem; min-height:1rem; }
    #message.err { color:#d7263d; }
    .columns { display:grid; grid-template-columns:2fr 1fr; gap:1.5rem; }
    .watch-item { display:flex; justify-content:space-between; padding:.4rem 0; border-bottom:1px dashed rgba(0,0,0,.15); font-size:.75rem; }
    @media (max-width:760px){ .columns { grid-template-columns:1fr; } body { padding:1rem; } }
  </style>
</head>
<body>
<div id="app">
  <header>
    <h1>paperdesk</h1>
    <div id="market-status" class="status">checking market…</div>
  </header>
  <section class="cards">
    <div class="card"><div class="label">Cash</div><div class="value" id="cash">—</div></div>
    <div class="card"><div class="label">Positions</div><div class="value" id="positions-value">—</div></div>
    <div class="card"><div class="label">Total</div><div class="value" id="total-value">—</div></div>
    <div class="card"><div class="label">Unrealized P&amp;L</div><div class="value" id="pl">—</div></div>
  </section>
  <section><canvas id="equity" height="110"></canvas></section>
  <section>
    <h2>Trade</h2>
    <form id="trade-form">
      <input id="trade-symbol" placeholder="SYMBOL" required maxlength="8" />
      <input id="trade-qty" type="number" min="1" step="1" value="1" required />
      <select id="trade-action"><option value="buy">buy</option><option value="sell">sell</option></select>
      <button type="submit">Execute</button>
      <button type="button" id="reset-btn">Reset portfolio</button>
    </form>
    <div id="message"></div>
  </section>
  <div class="columns">
    <section>
      <h2>Holdings</h2>
      <table><thead><tr><th>Symbol</th><th>Qty</th><th>Entry</th><th>Last</th><th>Value</th><th>P&amp;L</th></tr></thead>
      <tbody id="holdings"></tbody></table>
      <h2 style="margin-top:1.2rem">Trade log</h2>
      <table><thead><tr><th>Time</th><th>Action</th><th>Symbol</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead>
      <tbody id="trades"></tbody></table>
    </section>
    <section>
      <h2>Watchlist</h2>
      <div id="watchlist"></div>
      <form id="watch-form" style="margin-top:.8rem">
        <input id="watch-symbol" placeholder="SYMBOL" maxlength="8" />
        <button type="submit">Toggle</button>
      </form>
    </section>
  </div>
</div>
<script>
const fmt = (v) => Number(v).toLocaleString(undefined,{minimumFractionDigits:2,maximumFractionDigits:2});
const byId = (id) => document.getElementById(id);

const chart = new Chart(byId('equity').getContext('2d'), {
  type:'line',
  data:{ labels:[], datasets:[{ label:'Total value', data:[], borderColor:'#111111',
    backgroundColor:'rgba(17,17,17,.08)', borderWidth:2, pointRadius:0, tension:.15, fill:true }] },
  options:{ animation:false, plugins:{ legend:{ display:false } },
    scales:{ x:{ ticks:{ maxRotation:0, autoSkip:true } } } }
});

function pushSnapshot(s){
  const ts = new Date(s.ts);
  chart.data.labels.push(ts.toLocaleTimeString([], { hour12:false }));
  chart.data.datasets[0].data.push(parseFloat(s.total_value));
  if(chart.data.labels.length > 2000){ chart.data.labels.shift(); chart.data.datasets[0].data.shift(); }
  chart.update('none');
}

async function loadPortfolio(){
  const p = await (await fetch('/api/portfolio')).json();
  byId('cash').textContent = fmt(p.balance);
  byId('positions-value').textContent = fmt(p.positions_value);
  byId('total-value').textContent = fmt(p.total_value);
  const pl = parseFloat(p.unrealized_pl);
  const plEl = byId('pl');
  plEl.textContent = fmt(pl);
  plEl.className = 'value ' + (pl >= 0 ? 'up' : 'down');
  byId('holdings').innerHTML = p.positions.map(pos =>
    '<tr><td>'+pos.symbol+'</td><td>'+pos.quantity+'</td><td>'+fmt(pos.entry_price)+
    '</td><td>'+fmt(pos.current_price)+'</td><td>'+fmt(pos.market_value)+
    '</td><td>'+fmt(pos.pl)+'</td></tr>').join('');
}

async function loadTrades(){
  const trades = await (await fetch('/api/trades')).json();
  byId('trades').innerHTML = trades.slice(-50).reverse().map(t =>
    '<tr><td>'+new Date(t.timestamp).toLocaleTimeString([], { hour12:false })+'</td><td>'+t.action+
    '</td><td>'+t.symbol+'</td><td>'+t.quantity+'</td><td>'+fmt(t.price)+'</td><td>'+fmt(t.total)+'</td></tr>').join('');
}

async function loadWatchlist(){
  const data = await (await fetch('/api/watchlist')).json();
  byId('watchlist').innerHTML = data.quotes.map(q =>
    '<div class="watch-item"><span>'+q.symbol+'</span><span>'+(parseFloat(q.price) ? fmt(q.price) : '—')+'</span></div>').join('');
}

async function loadMarketStatus(){
  const s = await (await fetch('/api/market/status')).json();
  const el = byId('market-status');
  if(s.open){ el.textContent = s.market + ': open'; el.className = 'status'; }
  else { el.textContent = s.market + ': closed until ' + new Date(s.next_open).toLocaleString(); el.className = 'status closed'; }
}

function say(text, isErr){
  const el = byId('message');
  el.textContent = text;
  el.className = isErr ? 'err' : '';
}

byId('trade-form').addEventListener('submit', async (e) => {
  e.preventDefault();
  const body = {
    symbol: byId('trade-symbol').value.trim().toUpperCase(),
    quantity: parseInt(byId('trade-qty').value, 10),
    action: byId('trade-action').value
  };
  const resp = await fetch('/api/trade', { method:'POST', body:JSON.stringify(body) });
  const data = await resp.json();
  if(!resp.ok){ say(data.error, true); return; }
  say(data.action + ' ' + data.quantity + ' ' + data.symbol + ' @ ' + fmt(data.price));
  loadPortfolio(); loadTrades();
});

byId('reset-btn').addEventListener('click', async () => {
  const resp = await fetch('/api/reset', { method:'POST' });
  if(resp.ok){ say('portfolio reset'); loadPortfolio(); loadTrades(); loadWatchlist(); }
});

byId('watch-form').addEventListener('submit', async (e) => {
  e.preventDefault();
  const symbol = byId('watch-symbol').value.trim().toUpperCase();
  if(!symbol) return;
  await fetch('/api/watchlist/toggle', { method:'POST', body:JSON.stringify({symbol}) });
  byId('watch-symbol').value = '';
  loadWatchlist();
});

function connectSSE(){
  const source = new EventSource('/portfolio/stream');
  source.addEventListener('portfolio', (event) => {
    try { pushSnapshot(JSON.parse(event.data)); loadPortfolio(); } catch(err){ console.error(err); }
  });
  source.addEventListener('error', () => { source.close(); setTimeout(connectSSE, 2000); });
}

loadPortfolio(); loadTrades(); loadWatchlist(); loadMarketStatus();
setInterval(loadWatchlist, 5000);
setInterval(loadMarketStatus, 30000);
connectSSE();
</script>
</body>
</html>`
