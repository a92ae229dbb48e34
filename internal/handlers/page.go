package handlers

// indexPage is the whole interactive front-end: one upload control and one
// result area.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>MRI Screening</title>
<style>
body { font-family: sans-serif; max-width: 34rem; margin: 3rem auto; }
#result { margin-top: 1.5rem; font-size: 1.2rem; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>MRI Screening</h1>
<p>Upload an MRI scan (JPEG or PNG) to classify it.</p>
<form id="upload">
  <input type="file" name="image" accept="image/*" required>
  <button type="submit">Classify</button>
</form>
<div id="result"></div>
<script>
document.getElementById('upload').addEventListener('submit', async (e) => {
  e.preventDefault();
  const result = document.getElementById('result');
  result.textContent = 'Classifying...';
  result.className = '';
  try {
    const resp = await fetch('/predict', { method: 'POST', body: new FormData(e.target) });
    const body = await resp.json();
    if (!resp.ok) {
      result.textContent = body.error;
      result.className = 'error';
      return;
    }
    result.textContent = 'Prediction: ' + body.label + ' (' + Math.round(body.confidence * 100) + '%)';
  } catch (err) {
    result.textContent = 'could not process image';
    result.className = 'error';
  }
});
</script>
</body>
</html>
`
