package main

// demoPage is a self-contained page script showing the thin-client
// protocol: report the query string on connect and on popstate, apply
// navigate messages with the History API.
const demoPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>urlq demo</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 3rem auto; }
    input, button { font-size: 1rem; padding: 0.3rem 0.5rem; }
    code { background: #f0f0f0; padding: 0.1rem 0.3rem; }
  </style>
</head>
<body>
  <h1>urlq demo</h1>
  <p>Current query string: <code id="qs"></code></p>
  <p>
    <input id="q" placeholder="search (debounced server-side)">
    <button id="next">next page</button>
  </p>
  <script>
    const qs = () => location.search.replace(/^\?/, "");
    const show = () => document.getElementById("qs").textContent = "?" + qs();
    show();

    const proto = location.protocol === "https:" ? "wss:" : "ws:";
    const ws = new WebSocket(proto + "//" + location.host + "/ws");

    ws.onopen = () => ws.send(JSON.stringify({type: "init", query: qs()}));
    window.addEventListener("popstate", () =>
      ws.send(JSON.stringify({type: "popstate", query: qs()})));

    ws.onmessage = (ev) => {
      const msg = JSON.parse(ev.data);
      if (msg.type === "navigate") {
        const url = msg.query ? "?" + msg.query : location.pathname;
        if (msg.mode === "push") history.pushState(null, "", url);
        else history.replaceState(null, "", url);
        if (msg.scroll) window.scrollTo(0, 0);
        show();
      } else if (msg.type === "refresh") {
        console.log("server refresh for", msg.keys);
      }
    };

    // The demo drives state through plain page events; a real app would
    // expose typed setters server-side instead.
    document.getElementById("next").onclick = () => {
      const page = Number(new URLSearchParams(qs()).get("page") || "1");
      const next = new URLSearchParams(qs());
      next.set("page", String(page + 1));
      ws.send(JSON.stringify({type: "popstate", query: next.toString()}));
    };
    document.getElementById("q").oninput = (ev) => {
      const next = new URLSearchParams(qs());
      next.set("q", ev.target.value);
      ws.send(JSON.stringify({type: "popstate", query: next.toString()}));
    };
  </script>
</body>
</html>
`
