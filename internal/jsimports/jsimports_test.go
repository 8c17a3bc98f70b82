package jsimports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFindsTopLevelRequire(t *testing.T) {
	src := `var fs = require('fs');
function load() {
  var path = require('path');
  return path;
}
`
	requires := Extract(src)
	assert.Contains(t, requires, "fs")
	assert.Contains(t, requires, "path")
}

func TestExtractReturnsEmptyOnUnparseableSource(t *testing.T) {
	src := `import fs from 'fs'; // ES6 syntax go-fAST does not support`
	requires := Extract(src)
	assert.Empty(t, requires)
}
