// Package server provides the preview HTTP server with live reload support
// for respimg.
package server

import (
	"bytes"
	"fmt"
)

// ReloadPath is where browsers open the live reload WebSocket.
const ReloadPath = "/__respimg/ws"

// liveReloadScript reloads the page when the server broadcasts "reload".
const liveReloadScript = `<script>
(function() {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "%s";
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function(e) {
      if (e.data === "reload") {
        location.reload();
      }
    };
    ws.onclose = function() {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>`

// InjectLiveReload inserts the live reload script immediately before the last
// </body> tag, or appends it when the document has none.
func InjectLiveReload(html []byte) []byte {
	script := fmt.Appendf(nil, liveReloadScript, ReloadPath)

	idx := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if idx == -1 {
		return append(html, script...)
	}

	result := make([]byte, 0, len(html)+len(script))
	result = append(result, html[:idx]...)
	result = append(result, script...)
	result = append(result, html[idx:]...)
	return result
}
