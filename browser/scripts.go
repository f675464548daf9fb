package browser

// Scripts evaluated in the page. Visibility test is the same everywhere:
// element box intersects [0,0,width,height] of the document at scroll 0.

const aboveFoldJS = `(selector, width, height, limit) => {
	let nodes;
	try {
		nodes = document.querySelectorAll(selector);
	} catch (e) {
		return { error: String((e && e.message) || e) };
	}
	const n = limit > 0 ? Math.min(nodes.length, limit) : nodes.length;
	for (let i = 0; i < n; i++) {
		const r = nodes[i].getBoundingClientRect();
		const top = r.top + window.scrollY, left = r.left + window.scrollX;
		if (top < height && top + r.height >= 0 && left < width && left + r.width >= 0) {
			return { visible: true };
		}
	}
	return { visible: false };
}`

const clearingShiftJS = `(selector, props, anchors, width, height, limit) => {
	const verdict = (sel) => {
		let nodes;
		try {
			nodes = document.querySelectorAll(sel);
		} catch (e) {
			return false;
		}
		const n = limit > 0 ? Math.min(nodes.length, limit) : nodes.length;
		for (let i = 0; i < n; i++) {
			const r = nodes[i].getBoundingClientRect();
			const top = r.top + window.scrollY, left = r.left + window.scrollX;
			if (top < height && top + r.height >= 0 && left < width && left + r.width >= 0) {
				return true;
			}
		}
		return false;
	};
	const before = anchors.map(verdict);
	const style = document.createElement('style');
	style.textContent = selector + ' {' + props.map((p) => p + ': initial !important').join('; ') + '}';
	(document.head || document.documentElement).appendChild(style);
	let after;
	try {
		after = anchors.map(verdict);
	} finally {
		style.remove();
	}
	return { visible: before.some((v, i) => v !== after[i]) };
}`

const replaceStylesJS = `(text) => {
	document.querySelectorAll('link[rel~="stylesheet"], style').forEach((n) => n.remove());
	const style = document.createElement('style');
	style.textContent = text;
	(document.head || document.documentElement).appendChild(style);
	return { visible: true };
}`
