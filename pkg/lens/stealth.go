package lens

// stealthScript runs before any page script on every new document.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'language', { get: () => 'en-US' });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);
`

const (
	readyStateScript = `document.readyState`
	scrollScript     = `window.scrollBy(0, 300); true`
	jqueryIdleScript = `(typeof jQuery === 'undefined') || (jQuery.active === 0 && jQuery.ready.state === 'complete')`
)
