package template

import "github.com/Minhal128/CodeX/internal/filetree"

func file(contents string) filetree.File {
	return filetree.File{Contents: contents}
}

func dir(children filetree.Tree) filetree.Directory {
	return filetree.Directory{Children: children}
}

func reactApp() filetree.Tree {
	return filetree.Tree{
		"package.json": file(`{
  "name": "react-app",
  "version": "0.1.0",
  "private": true,
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0",
    "react-scripts": "5.0.1"
  },
  "scripts": {
    "start": "react-scripts start",
    "build": "react-scripts build",
    "test": "react-scripts test"
  }
}
`),
		"public": dir(filetree.Tree{
			"index.html": file(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>React App</title>
  </head>
  <body>
    <div id="root"></div>
  </body>
</html>
`),
		}),
		"src": dir(filetree.Tree{
			"index.js": file(`import React from 'react';
import ReactDOM from 'react-dom/client';
import './index.css';
import App from './App';

const root = ReactDOM.createRoot(document.getElementById('root'));
root.render(
  <React.StrictMode>
    <App />
  </React.StrictMode>
);
`),
			"App.js": file(`import './App.css';

function App() {
  return (
    <div className="App">
      <header className="App-header">
        <p>Edit <code>src/App.js</code> and save to reload.</p>
      </header>
    </div>
  );
}

export default App;
`),
			"App.css": file(`.App {
  text-align: center;
}

.App-header {
  min-height: 100vh;
  display: flex;
  flex-direction: column;
  align-items: center;
  justify-content: center;
}
`),
			"index.css": file(`body {
  margin: 0;
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
}
`),
		}),
	}
}

func expressServer() filetree.Tree {
	return filetree.Tree{
		"package.json": file(`{
  "name": "express-server",
  "version": "1.0.0",
  "main": "app.js",
  "scripts": {
    "start": "node app.js"
  },
  "dependencies": {
    "express": "^4.19.2"
  }
}
`),
		"app.js": file(`const express = require('express');
const indexRouter = require('./routes/index');

const app = express();
const port = process.env.PORT || 3000;

app.use(express.json());
app.use('/', indexRouter);

app.listen(port, () => {
  console.log('Server listening on port ' + port);
});
`),
		"routes": dir(filetree.Tree{
			"index.js": file(`const express = require('express');

const router = express.Router();

router.get('/', (req, res) => {
  res.json({ message: 'Hello from Express' });
});

module.exports = router;
`),
		}),
	}
}
