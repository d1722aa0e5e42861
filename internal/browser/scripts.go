package browser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const queryOneScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return { found: false };
  const style = window.getComputedStyle(el);
  const rect = el.getBoundingClientRect();
  const attrs = {};
  for (const a of Array.from(el.attributes)) attrs[a.name] = a.value;
  return {
    found: true,
    text: (el.innerText || el.textContent || ''),
    visible: style.visibility !== 'hidden' && style.display !== 'none' && rect.width > 0 && rect.height > 0,
    enabled: !el.disabled && el.getAttribute('aria-disabled') !== 'true',
    attrs: attrs,
  };
})()`

const countScript = `document.querySelectorAll(%s).length`

const imagesScript = `Array.from(document.images).map((img) => {
  const resolve = (v) => { try { return v ? new URL(v, document.baseURI).href : ''; } catch (e) { return v; } };
  return {
    src: img.getAttribute('src') ? img.src : '',
    dataSrc: resolve(img.getAttribute('data-src')),
    alt: img.getAttribute('alt') || '',
    width: img.width,
    height: img.height,
    naturalWidth: img.naturalWidth,
    naturalHeight: img.naturalHeight,
    complete: img.complete,
  };
})`

const probeScript = `(async () => {
  const res = await fetch(%s, { method: 'HEAD', cache: 'no-store' });
  return res.status;
})()`

// errorTrapScript keeps any handler the page installed and forwards to it.
const errorTrapScript = `(async (windowMs) => {
  const captured = [];
  const previous = window.onerror;
  window.onerror = function (message, source, line, column, error) {
    captured.push({
      message: String(message),
      source: source || '',
      line: line || 0,
      column: column || 0,
      stack: error && error.stack ? String(error.stack) : '',
    });
    if (typeof previous === 'function') return previous.apply(this, arguments);
    return false;
  };
  window.addEventListener('unhandledrejection', (event) => {
    const reason = event.reason;
    captured.push({
      message: 'Unhandled promise rejection: ' + (reason && reason.message ? reason.message : String(reason)),
      source: 'unhandledrejection',
      line: 0,
      column: 0,
      stack: reason && reason.stack ? String(reason.stack) : '',
    });
  });
  await new Promise((resolve) => setTimeout(resolve, windowMs));
  return captured;
})(%d)`

func queryOneJS(selector string) string { return fmt.Sprintf(queryOneScript, jsString(selector)) }
func countJS(selector string) string    { return fmt.Sprintf(countScript, jsString(selector)) }
func probeJS(url string) string         { return fmt.Sprintf(probeScript, jsString(url)) }
func errorTrapJS(windowMs int64) string { return fmt.Sprintf(errorTrapScript, windowMs) }
