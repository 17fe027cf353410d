package gateway

var Classify = classify
